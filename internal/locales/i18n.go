// Package locales localizes the user-facing run report. The original
// operator audience is Russian-speaking, so ru ships alongside en.
package locales

import (
	"embed"
	"encoding/json"
	"log"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

var (
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
)

// Init initializes the i18n bundle by loading language files and setting the default language.
func Init(defaultLangCode string) {
	var err error
	defaultLanguage, err = language.Parse(defaultLangCode)
	if err != nil {
		log.Printf("WARN: Failed to parse default language code '%s': %v. Falling back to English.", defaultLangCode, err)
		defaultLanguage = language.English
	}

	bundle = i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := localeFS.ReadDir(".")
	if err != nil {
		log.Fatalf("Failed to read embedded locales directory: %v", err)
	}

	loaded := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, file.Name()); err != nil {
			log.Printf("WARN: Failed to load message file '%s': %v", file.Name(), err)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		log.Fatalf("No message files loaded from locales/")
	}
	log.Printf("i18n bundle initialized with %d file(s). Default language: %s", loaded, defaultLanguage.String())
}

// NewLocalizer creates a localizer for the given language preferences,
// falling back to the configured default language.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	if bundle == nil {
		log.Panicln("Attempted to create localizer before i18n bundle initialization.")
	}
	langPrefs = append(langPrefs, defaultLanguage.String())
	return i18n.NewLocalizer(bundle, langPrefs...)
}

// GetMessage retrieves and formats a message by its ID using the provided localizer.
// templateData is an optional map for template variables.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}) string {
	localizedMsg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	})
	if err != nil {
		log.Printf("ERROR: Failed to localize message ID '%s': %v. Falling back to English.", msgID, err)

		englishLocalizer := i18n.NewLocalizer(bundle, language.English.String())
		fallbackMsg, fallbackErr := englishLocalizer.Localize(&i18n.LocalizeConfig{
			MessageID:    msgID,
			TemplateData: templateData,
		})
		if fallbackErr == nil {
			return fallbackMsg
		}
		return msgID
	}
	return localizedMsg
}
