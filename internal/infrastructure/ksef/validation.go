package ksef

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/Mc-Beton/K-fun/pkg/config"
	"github.com/Mc-Beton/K-fun/pkg/ksef"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

// requiredSections is the FA(3) top-level section order the structural check
// enforces.
var requiredSections = []string{"Naglowek", "Podmiot1", "Podmiot2", "Fa", "FaWiersz"}

// ValidationResult is the outcome of a structural validation pass. OK with an
// empty Findings list means the document passed every check the active
// profile runs.
type ValidationResult struct {
	OK       bool
	Findings []string
}

// ValidatorService checks rendered invoices before they are signed and sent.
// Well-formedness is a hard gate; the structural profile is advisory and the
// caller decides whether findings block submission.
//
// Schema acquisition is tiered: a local XSD file first, then a one-shot
// remote fetch, then a permissive mode that checks only the root element and
// its namespace. The tier is resolved once per process.
type ValidatorService struct {
	cfg *config.KSeFConfig
	log *logger.Logger

	once       sync.Once
	permissive bool
	schemaSrc  string
}

// NewValidatorService creates the validator. The schema tier is resolved
// lazily on first use, not here, so construction never touches disk or
// network.
func NewValidatorService(cfg *config.KSeFConfig, log *logger.Logger) *ValidatorService {
	return &ValidatorService{cfg: cfg, log: log}
}

// IsWellFormed reports whether the document parses as strict XML.
func (s *ValidatorService) IsWellFormed(xmlBytes []byte) bool {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = false
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return false
	}
	return doc.Root() != nil
}

// Validate runs the structural FA(3) profile over the document. A document
// that is not well-formed or whose root is not the Faktura element always
// fails; the section checks apply only when a schema source was acquired.
func (s *ValidatorService) Validate(xmlBytes []byte) ValidationResult {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = false
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return ValidationResult{Findings: []string{fmt.Sprintf("document is not well-formed: %v", err)}}
	}
	root := doc.Root()
	if root == nil {
		return ValidationResult{Findings: []string{"document has no root element"}}
	}

	var findings []string
	if root.Tag != "Faktura" {
		findings = append(findings, fmt.Sprintf("root element is %q, expected Faktura", root.Tag))
	}
	if ns := root.SelectAttrValue("xmlns", ""); ns != ksef.Namespace {
		findings = append(findings, fmt.Sprintf("root namespace is %q, expected %q", ns, ksef.Namespace))
	}

	// Permissive mode still rejects a foreign root; only the section profile
	// is waived.
	s.resolveSchema()
	if s.permissive {
		return ValidationResult{OK: len(findings) == 0, Findings: findings}
	}

	findings = append(findings, checkSectionOrder(root)...)

	return ValidationResult{OK: len(findings) == 0, Findings: findings}
}

// checkSectionOrder verifies that every required section is present and that
// they appear in schema order relative to each other.
func checkSectionOrder(root *etree.Element) []string {
	var findings []string

	positions := make(map[string]int)
	for i, child := range root.ChildElements() {
		if _, seen := positions[child.Tag]; !seen {
			positions[child.Tag] = i
		}
	}

	last := -1
	for _, section := range requiredSections {
		pos, ok := positions[section]
		if !ok {
			findings = append(findings, fmt.Sprintf("missing section %s", section))
			continue
		}
		if pos < last {
			findings = append(findings, fmt.Sprintf("section %s out of order", section))
		}
		last = pos
	}
	return findings
}

// resolveSchema picks the schema tier exactly once. Failure to obtain the
// XSD from either source logs a warning and drops to permissive mode rather
// than blocking the pipeline.
func (s *ValidatorService) resolveSchema() {
	s.once.Do(func() {
		if s.cfg != nil && s.cfg.SchemaPath != "" {
			if _, err := os.Stat(s.cfg.SchemaPath); err == nil {
				s.schemaSrc = s.cfg.SchemaPath
				s.log.Info().Str("path", s.cfg.SchemaPath).Msg("FA(3) schema loaded from local file")
				return
			}
		}
		if s.cfg != nil && s.cfg.SchemaURL != "" {
			if err := s.fetchSchema(s.cfg.SchemaURL); err == nil {
				s.schemaSrc = s.cfg.SchemaURL
				s.log.Info().Str("url", s.cfg.SchemaURL).Msg("FA(3) schema fetched from remote")
				return
			} else {
				s.log.Warn().Err(err).Str("url", s.cfg.SchemaURL).
					Msg("FA(3) schema fetch failed, structural validation disabled")
			}
		}
		s.permissive = true
	})
}

// fetchSchema downloads the XSD once to confirm it is reachable and parses
// as XML. The content is not retained; full XSD evaluation is out of reach
// without cgo bindings, so the structural profile stands in for it.
func (s *ValidatorService) fetchSchema(url string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("schema fetch returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	probe := etree.NewDocument()
	if err := probe.ReadFromBytes(body); err != nil {
		return fmt.Errorf("schema is not valid XML: %w", err)
	}
	return nil
}
