// Package translate translates text and detects its language with the Cloud
// Translation API (v2). The API accepts an API key in place of OAuth
// credentials; set APIKey in the configuration to use one.
package translate

import (
	"context"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	raw "google.golang.org/api/translate/v2"
)

// Texts per request; longer inputs are split.
const MaxTexts = 128

type Client struct {
	svc     *raw.Service
	log     gcloud.Logger
	backoff *backoff.Backoff
}

func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	s := gcloud.NewSettings(cfg, gcloud.ServiceTranslate, opts...)
	svc, err := raw.NewService(ctx, s.ClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create translate service")
	}
	return &Client{
		svc:     svc,
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServiceTranslate),
	}, nil
}

type TranslateOptions struct {
	// Target language, required
	To string
	// Source language; detected per text when empty
	From string
	// "text" or "html" (the default)
	Format string
	// "nmt" or "base"
	Model string
}

// Translate translates texts, returning one result per text in order.
func (c *Client) Translate(ctx context.Context, texts []string, opts TranslateOptions) ([]*Translation, error) {
	if opts.To == "" {
		return nil, apierr.Invalidf("translate.translations.list", "target language is required")
	}
	var out []*Translation
	for _, batch := range batches(texts) {
		var resp *raw.TranslationsListResponse
		err := apierr.FromAPI("translate.translations.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.Translations.List(batch, opts.To).Context(ctx)
			if opts.From != "" {
				call = call.Source(opts.From)
			}
			if opts.Format != "" {
				call = call.Format(opts.Format)
			}
			if opts.Model != "" {
				call = call.Model(opts.Model)
			}
			var err error
			resp, err = call.Do()
			return err
		}))
		if err != nil {
			return nil, err
		}
		if len(resp.Translations) != len(batch) {
			return nil, errors.Errorf("translate.translations.list: sent %d texts, got %d translations", len(batch), len(resp.Translations))
		}
		for i, t := range resp.Translations {
			out = append(out, translationFromRaw(t, batch[i], opts.To, opts.From))
		}
	}
	c.log.WithFields(logrus.Fields{"texts": len(texts), "to": opts.To}).Debug("translated")
	return out, nil
}

// Detect returns the most likely language of each text.
func (c *Client) Detect(ctx context.Context, texts ...string) ([]*Detection, error) {
	var out []*Detection
	for _, batch := range batches(texts) {
		var resp *raw.DetectionsListResponse
		err := apierr.FromAPI("translate.detections.list", c.backoff.Execute(ctx, func() error {
			var err error
			resp, err = c.svc.Detections.List(batch).Context(ctx).Do()
			return err
		}))
		if err != nil {
			return nil, err
		}
		if len(resp.Detections) != len(batch) {
			return nil, errors.Errorf("translate.detections.list: sent %d texts, got %d detections", len(batch), len(resp.Detections))
		}
		for i, candidates := range resp.Detections {
			var best *raw.DetectionsResourceItem
			for _, d := range candidates {
				if best == nil || d.Confidence > best.Confidence {
					best = d
				}
			}
			out = append(out, detectionFromRaw(best, batch[i]))
		}
	}
	return out, nil
}

// Languages lists the supported languages. If target is set, their names are
// given in that language.
func (c *Client) Languages(ctx context.Context, target string) ([]*Language, error) {
	var resp *raw.LanguagesListResponse
	err := apierr.FromAPI("translate.languages.list", c.backoff.Execute(ctx, func() error {
		call := c.svc.Languages.List().Context(ctx)
		if target != "" {
			call = call.Target(target)
		}
		var err error
		resp, err = call.Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]*Language, 0, len(resp.Languages))
	for _, l := range resp.Languages {
		out = append(out, languageFromRaw(l))
	}
	return out, nil
}

func batches(texts []string) [][]string {
	var out [][]string
	for len(texts) > MaxTexts {
		out = append(out, texts[:MaxTexts])
		texts = texts[MaxTexts:]
	}
	if len(texts) > 0 {
		out = append(out, texts)
	}
	return out
}
