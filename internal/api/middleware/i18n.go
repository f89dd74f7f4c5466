package middleware

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const (
	languageKey   = "language"
	translatorKey = "translator"
)

// Übersetzer hält die Übersetzungsfunktionalität
type Translator struct {
	bundle          *i18n.Bundle
	localizer       map[string]*i18n.Localizer
	matcher         language.Matcher
	defaultLanguage string
}

// NewTranslator lädt die eingebetteten Übersetzungen
func NewTranslator(defaultLanguage string) (*Translator, error) {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		bundle:    bundle,
		localizer: make(map[string]*i18n.Localizer),
	}

	files, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	var tags []language.Tag
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", file.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, file.Name()); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", file.Name(), err)
		}

		// Sprachcode aus dem Dateinamen (z.B. "de.json" -> "de")
		langCode := strings.TrimSuffix(file.Name(), ".json")
		t.localizer[langCode] = i18n.NewLocalizer(bundle, langCode)
		tags = append(tags, language.Make(langCode))
	}

	if _, ok := t.localizer[defaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %q has no translations", defaultLanguage)
	}
	t.defaultLanguage = defaultLanguage

	// Die Standardsprache steht vorn, damit sie bei fehlender Übereinstimmung gewählt wird
	ordered := []language.Tag{language.Make(defaultLanguage)}
	for _, tag := range tags {
		if tag != ordered[0] {
			ordered = append(ordered, tag)
		}
	}
	t.matcher = language.NewMatcher(ordered)

	return t, nil
}

// Supported prüft, ob für die Sprache Übersetzungen vorliegen
func (t *Translator) Supported(lang string) bool {
	_, ok := t.localizer[lang]
	return ok
}

// Match wählt die passendste Sprache für einen Accept-Language-Header
func (t *Translator) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.defaultLanguage
	}
	tag, _, _ := t.matcher.Match(tags...)
	base, _ := tag.Base()
	if t.Supported(base.String()) {
		return base.String()
	}
	return t.defaultLanguage
}

// Translate übersetzt eine Meldung. Unbekannte Schlüssel werden unverändert zurückgegeben.
func (t *Translator) Translate(lang, id string, data map[string]interface{}) string {
	localizer, ok := t.localizer[lang]
	if !ok {
		localizer = t.localizer[t.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		log.Debugf("Missing translation for %s (%s): %v", id, lang, err)
		return id
	}
	return msg
}

// I18n erstellt eine Middleware für die Internationalisierung. Die Sprache kommt aus
// ?lang=, der Session oder dem Accept-Language-Header, in dieser Reihenfolge.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && translator.Supported(lang) {
			// Gewählte Sprache für Folgeanfragen merken
			session.Set(languageKey, lang)
			if err := session.Save(); err != nil {
				log.Debugf("Failed to save language in session: %v", err)
			}
		} else {
			lang = ""
			if sessionLang, ok := session.Get(languageKey).(string); ok && translator.Supported(sessionLang) {
				lang = sessionLang
			}
		}

		if lang == "" {
			lang = translator.Match(c.GetHeader("Accept-Language"))
		}

		c.Set(languageKey, lang)
		c.Set(translatorKey, translator)
		c.Next()
	}
}

// englischer Übersetzer für Anfragen ohne I18n-Middleware
var fallbackTranslator = sync.OnceValue(func() *Translator {
	t, err := NewTranslator("en")
	if err != nil {
		log.Errorf("Failed to load fallback translations: %v", err)
		return nil
	}
	return t
})

// T übersetzt eine Meldung in die Sprache der Anfrage
func T(c *gin.Context, id string, data map[string]interface{}) string {
	if translator, ok := c.Get(translatorKey); ok {
		return translator.(*Translator).Translate(c.GetString(languageKey), id, data)
	}
	if t := fallbackTranslator(); t != nil {
		return t.Translate(t.defaultLanguage, id, data)
	}
	return id
}
