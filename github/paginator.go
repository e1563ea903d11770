package github

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// Getter is the part of Client the paginator drives.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
}

// Paginator walks a collection endpoint page by page.
type Paginator struct {
	client   Getter
	pageSize int
	maxPages int
	log      *zap.Logger
}

// NewPaginator creates a paginator requesting pageSize items per page.
func NewPaginator(client Getter, pageSize int, log *zap.Logger) *Paginator {
	if pageSize < 1 {
		pageSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Paginator{
		client:   client,
		pageSize: pageSize,
		maxPages: 1000,
		log:      log,
	}
}

// Collect requests pages 1, 2, ... of path until a page comes back empty.
//
// A failure on the first page is returned as is. A failure on any later page ends
// the walk and the items gathered so far are returned without error, so callers
// must accept that the result may be truncated.
func (p *Paginator) Collect(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var items []json.RawMessage

	for page := 1; page <= p.maxPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("per_page", strconv.Itoa(p.pageSize))
		q.Set("page", strconv.Itoa(page))

		pageItems, err := p.fetchPage(ctx, path, q)
		if err != nil {
			if page == 1 || ctx.Err() != nil {
				return nil, err
			}
			p.log.Warn("Pagination stopped early, returning partial results",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Int("collected", len(items)),
				zap.Error(err))
			return items, nil
		}
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
	}

	p.log.Debug("Collected all pages", zap.String("path", path), zap.Int("total_count", len(items)))
	return items, nil
}

func (p *Paginator) fetchPage(ctx context.Context, path string, q url.Values) ([]json.RawMessage, error) {
	body, err := p.client.Get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	var pageItems []json.RawMessage
	if err := json.Unmarshal(body, &pageItems); err != nil {
		return nil, &RequestError{Path: path, StatusCode: 200, Attempts: 1, Kind: ErrDecode, Cause: err}
	}
	return pageItems, nil
}
