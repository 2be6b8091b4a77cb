package connectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/filesystem"
	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/web"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// ForInputs builds one connector per local path and a single web
// connector for all URLs, preserving the order paths were given.
func ForInputs(inputs []string, fsOpts filesystem.Options, webCfg web.Config) []driven.Connector {
	var (
		out  []driven.Connector
		urls []string
	)
	for _, in := range inputs {
		if web.IsURL(in) {
			urls = append(urls, in)
			continue
		}
		out = append(out, filesystem.New(in, fsOpts))
	}
	if len(urls) > 0 {
		out = append(out, web.New(urls, webCfg))
	}
	return out
}

// Collect drains every connector in turn. Documents from failing
// connectors are still returned alongside the joined errors.
func Collect(ctx context.Context, conns ...driven.Connector) ([]domain.RawDocument, error) {
	var (
		docs []domain.RawDocument
		errs []error
	)
	for _, c := range conns {
		if err := c.Validate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Type(), err))
			continue
		}
		docCh, errCh := c.FullSync(ctx)
		for docCh != nil || errCh != nil {
			select {
			case d, ok := <-docCh:
				if !ok {
					docCh = nil
					continue
				}
				docs = append(docs, d)
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				errs = append(errs, fmt.Errorf("%s: %w", c.Type(), err))
			}
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return docs, errors.Join(errs...)
}
