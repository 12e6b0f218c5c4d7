package translate

import (
	raw "google.golang.org/api/translate/v2"
)

// Translation is the result for one input text.
type Translation struct {
	Text string
	// The input text
	Origin string
	To     string
	// Language of the input, detected unless it was given
	Source string
	// "nmt" or "base"
	Model string
}

func translationFromRaw(t *raw.TranslationsResource, origin, to, from string) *Translation {
	out := &Translation{Origin: origin, To: to, Source: from}
	if t == nil {
		return out
	}
	out.Text = t.TranslatedText
	out.Model = t.Model
	if t.DetectedSourceLanguage != "" {
		out.Source = t.DetectedSourceLanguage
	}
	return out
}

type Detection struct {
	Text       string
	Language   string
	Confidence float64
	Reliable   bool
}

func detectionFromRaw(d *raw.DetectionsResourceItem, text string) *Detection {
	if d == nil {
		return &Detection{Text: text}
	}
	return &Detection{
		Text:       text,
		Language:   d.Language,
		Confidence: d.Confidence,
		Reliable:   d.IsReliable,
	}
}

type Language struct {
	Code string
	// Name in the requested display language, empty if none was requested
	Name string
}

func languageFromRaw(l *raw.LanguagesResource) *Language {
	if l == nil {
		return &Language{}
	}
	return &Language{Code: l.Language, Name: l.Name}
}
