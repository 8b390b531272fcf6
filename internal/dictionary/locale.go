package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lingotags/internal/fsutil"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Strings maps keys to extracted text in insertion order, so language files
// keep their key order across runs.
type Strings = orderedmap.OrderedMap[string, string]

// NewStrings returns an empty map that encodes without HTML escaping.
func NewStrings() *Strings {
	return orderedmap.New[string, string](orderedmap.WithDisableHTMLEscape[string, string]())
}

// copyInto copies every entry of src into dst; src wins on conflicts and new
// keys go after the existing ones.
func copyInto(dst, src *Strings) {
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		dst.Set(pair.Key, pair.Value)
	}
}

// LanguageFile returns <localesDir>/<lang>.json.
func LanguageFile(localesDir, lang string) string {
	if lang == "" {
		lang = "en"
	}
	return filepath.Join(localesDir, lang+".json")
}

// ExportTranslations writes translations to file. With merge set, entries
// already in the file are kept unless the new set has the same key.
func ExportTranslations(file string, translations *Strings, merge bool) (*Strings, error) {
	result := NewStrings()
	if merge {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, result); err != nil {
				return nil, fmt.Errorf("decode language file %s: %w", file, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read language file: %w", err)
		}
	}
	copyInto(result, translations)

	data, err := marshalIndent(result)
	if err != nil {
		return nil, fmt.Errorf("encode language file: %w", err)
	}
	if err := fsutil.WriteFileAtomic(file, data); err != nil {
		return nil, fmt.Errorf("write language file: %w", err)
	}
	return result, nil
}

// EnsureReadme writes a usage README into localesDir unless one exists.
// It reports whether a file was created.
func EnsureReadme(localesDir, lang string) (bool, error) {
	p := filepath.Join(localesDir, "README.md")
	ok, err := fsutil.Exists(p)
	if err != nil {
		return false, fmt.Errorf("stat readme: %w", err)
	}
	if ok {
		return false, nil
	}
	if lang == "" {
		lang = "en"
	}
	if err := fsutil.WriteFileAtomic(p, []byte(fmt.Sprintf(readmeTemplate, lang))); err != nil {
		return false, fmt.Errorf("write readme: %w", err)
	}
	return true, nil
}

const readmeTemplate = "# Translation Files\n\n" +
	"This directory contains the translation files for your application.\n\n" +
	"## Usage\n\n" +
	"To use these translations in your React components:\n\n" +
	"```jsx\n" +
	"// Import the translation function\n" +
	"import { useTranslation } from 'your-translation-library'; // e.g., react-i18next\n\n" +
	"function MyComponent() {\n" +
	"  // Initialize the translation function\n" +
	"  const { t } = useTranslation();\n\n" +
	"  return (\n" +
	"    <div>\n" +
	"      <h1>{t('unique_key_1')}</h1>\n" +
	"      <p>{t('unique_key_2')}</p>\n" +
	"    </div>\n" +
	"  );\n" +
	"}\n" +
	"```\n\n" +
	"## Adding New Languages\n\n" +
	"To add a new language, create a new JSON file with the language code as the filename, for example `fr.json` for French.\n" +
	"Copy the content from `%s.json` and translate the values.\n"
