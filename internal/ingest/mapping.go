package ingest

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"backlogwatch/internal/domain"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

type Field string

const (
	FieldID            Field = "id"
	FieldTitle         Field = "title"
	FieldStatus        Field = "status"
	FieldSeverity      Field = "severity"
	FieldOwner         Field = "owner"
	FieldRegion        Field = "region"
	FieldCompany       Field = "company"
	FieldCity          Field = "city"
	FieldCreatedAt     Field = "created_at"
	FieldLastUpdatedAt Field = "last_updated_at"
)

var allFields = []Field{
	FieldID, FieldTitle, FieldStatus, FieldSeverity, FieldOwner,
	FieldRegion, FieldCompany, FieldCity, FieldCreatedAt, FieldLastUpdatedAt,
}

func IsKnownField(f Field) bool {
	for _, known := range allFields {
		if known == f {
			return true
		}
	}
	return false
}

// Mapping lists, per source, the header aliases accepted for each ticket field.
type Mapping map[string]map[Field][]string

func DefaultMapping() Mapping {
	common := map[Field][]string{
		FieldRegion:  {"Region", "Région", "Zone"},
		FieldCompany: {"Company", "Société", "Entreprise", "Client"},
		FieldCity:    {"City", "Ville", "Site", "Location"},
	}
	withCommon := func(m map[Field][]string) map[Field][]string {
		for f, aliases := range common {
			m[f] = append(m[f], aliases...)
		}
		return m
	}
	itsm := func() map[Field][]string {
		return withCommon(map[Field][]string{
			FieldID:            {"Number", "Numéro", "ID"},
			FieldTitle:         {"Short description", "Description courte", "Summary"},
			FieldStatus:        {"State", "État", "Status"},
			FieldSeverity:      {"Priority", "Priorité", "Severity"},
			FieldOwner:         {"Assigned to", "Assigné à", "Assignee"},
			FieldCreatedAt:     {"Opened", "Ouvert", "Created", "Opened at"},
			FieldLastUpdatedAt: {"Updated", "Mis à jour", "Last updated"},
		})
	}
	return Mapping{
		domain.SourceClarify: withCommon(map[Field][]string{
			FieldID:            {"ID Cas", "Numéro de cas", "Case ID", "ID"},
			FieldTitle:         {"Titre", "Objet", "Title"},
			FieldStatus:        {"Statut", "État", "Status"},
			FieldSeverity:      {"Sévérité", "Severity", "Gravité"},
			FieldOwner:         {"Propriétaire", "Responsable", "Owner"},
			FieldCreatedAt:     {"Date création", "Date de création", "Created"},
			FieldLastUpdatedAt: {"Date modification", "Date de modification", "Dernière mise à jour", "Last updated"},
		}),
		domain.SourceJira: withCommon(map[Field][]string{
			FieldID:            {"Issue key", "Key", "Clé de ticket"},
			FieldTitle:         {"Summary", "Résumé"},
			FieldStatus:        {"Status", "État"},
			FieldSeverity:      {"Priority", "Priorité", "Severity"},
			FieldOwner:         {"Assignee", "Responsable"},
			FieldCreatedAt:     {"Created", "Création"},
			FieldLastUpdatedAt: {"Updated", "Mise à jour"},
		}),
		domain.SourceITSMChange:   itsm(),
		domain.SourceITSMIncident: itsm(),
	}
}

// LoadMapping reads a YAML file of extra header aliases and merges it over
// the defaults. Extra aliases are tried before the built-in ones.
func LoadMapping(path string) (Mapping, error) {
	m := DefaultMapping()
	if strings.TrimSpace(path) == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ingest mapping: %w", err)
	}
	var extra map[string]map[string][]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse ingest mapping yaml: %w", err)
	}
	for source, fields := range extra {
		source = strings.TrimSpace(source)
		if !domain.IsKnownSource(source) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
		}
		for name, aliases := range fields {
			f := Field(strings.TrimSpace(name))
			if !IsKnownField(f) {
				return nil, fmt.Errorf("ingest mapping %s: unknown field %q", source, name)
			}
			m[source][f] = append(append([]string(nil), aliases...), m[source][f]...)
		}
	}
	return m, nil
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader folds case, accents and inner whitespace so that
// "Date  Création" and "date creation" compare equal.
func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// resolveColumns maps each field to its column index in header, or -1.
func resolveColumns(aliases map[Field][]string, header []string) map[Field]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, seen := index[key]; !seen && key != "" {
			index[key] = i
		}
	}
	cols := make(map[Field]int, len(allFields))
	for _, f := range allFields {
		cols[f] = -1
		for _, alias := range aliases[f] {
			if i, ok := index[normalizeHeader(alias)]; ok {
				cols[f] = i
				break
			}
		}
	}
	return cols
}
