package gtfs

import (
	"fmt"
	"path/filepath"

	"transitd/internal/domain"
)

// LoadTranslations parses translations.txt (if present) and attaches the
// resolved stop_id -> lang -> value map onto each Stop, per spec.md §4.4
// step 4 and §4.6. Both input shapes are accepted: the table-based shape
// (table_name/field_name/record_id) and the simple shape (trans_id joined
// to stops by name), normalized to the same stop_id->lang->value map.
func LoadTranslations(dir string, snap *Snapshot) error {
	path := filepath.Join(dir, "translations.txt")
	if !fileExists(path) {
		return nil
	}

	var rows []translationRow
	if err := openCSV(dir, "translations.txt", &rows); err != nil {
		return err
	}

	for _, r := range rows {
		if r.TableName != "" {
			if r.TableName != "stops" || r.FieldName != "stop_name" || r.RecordID == "" {
				continue
			}
			attachTranslation(snap, r.RecordID, r.Language, r.Translation)
			continue
		}
		// Simple shape: join by matching stop name to trans_id.
		if r.TransID == "" {
			continue
		}
		for _, stop := range snap.Stops {
			if stop.Name == r.TransID {
				attachTranslation(snap, stop.ID, r.Language, r.Translation)
			}
		}
	}
	return nil
}

func attachTranslation(snap *Snapshot, stopID, lang, value string) {
	stop, ok := snap.Stops[stopID]
	if !ok || value == "" || lang == "" {
		return
	}
	if stop.Translations == nil {
		stop.Translations = make(map[string]string)
	}
	stop.Translations[lang] = value
}

// ResolveLanguage implements the C6 selection rule: exact requested
// language, else the provider's declared preference order, else the
// default field with a warning describing the fallback chain used.
func ResolveLanguage(stop *domain.Stop, requested string, providerLanguages []string, defaultLanguage string) (string, *domain.LanguageMetadata) {
	if v, ok := stop.Translations[requested]; ok {
		return v, &domain.LanguageMetadata{Selected: requested, Requested: requested}
	}

	var chain []string
	for _, lang := range providerLanguages {
		chain = append(chain, lang)
		if v, ok := stop.Translations[lang]; ok {
			return v, &domain.LanguageMetadata{
				Selected: lang, Requested: requested, FallbackChain: chain,
				Warning: fmt.Sprintf("requested language %q unavailable, fell back to %q", requested, lang),
			}
		}
	}

	chain = append(chain, defaultLanguage)
	return stop.Name, &domain.LanguageMetadata{
		Selected: defaultLanguage, Requested: requested, FallbackChain: chain,
		Warning: fmt.Sprintf("requested language %q unavailable, used default name", requested),
	}
}
