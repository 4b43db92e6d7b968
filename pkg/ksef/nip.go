package ksef

// NormalizeNIP strips everything but digits from a tax identifier
// ("123-456-78-90" and "1234567890" are the same NIP).
func NormalizeNIP(nip string) string {
	var out []byte
	for _, b := range []byte(nip) {
		if b >= '0' && b <= '9' {
			out = append(out, b)
		}
	}
	return string(out)
}

// nipWeights for the checksum over the first nine digits.
var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// ValidNIP reports whether the identifier is a structurally valid Polish NIP:
// ten digits whose weighted checksum mod 11 equals the last digit.
func ValidNIP(nip string) bool {
	digits := NormalizeNIP(nip)
	if len(digits) != 10 {
		return false
	}
	sum := 0
	for i, w := range nipWeights {
		sum += int(digits[i]-'0') * w
	}
	check := sum % 11
	if check == 10 {
		return false
	}
	return check == int(digits[9]-'0')
}
