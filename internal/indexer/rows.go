package indexer

import (
	"errors"
	"fmt"

	"trackscrape/internal/definition"
	"trackscrape/internal/selector"
	"trackscrape/internal/tmpl"
	"trackscrape/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// mergeRows joins every block of `after` rows following a row into that row. The cells of
// the merged rows are moved to the head row and the emptied rows are removed.
func mergeRows(rows *goquery.Selection, after int) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, rows.Length())
	if after <= 0 {
		rows.Each(func(_ int, row *goquery.Selection) {
			out = append(out, row)
		})
		return out
	}

	for start := 0; start < rows.Length(); start += after + 1 {
		head := rows.Eq(start)
		for j := 1; j <= after && start+j < rows.Length(); j++ {
			extra := rows.Eq(start + j)
			head.AppendSelection(extra.Contents())
			extra.Remove()
		}
		out = append(out, head)
	}
	return out
}

func (i *Indexer) parseRows(doc *goquery.Document, pageURL string, tctx tmpl.Context) (releases []Release, parseErr *ParseError) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		parseErr = &ParseError{Site: i.def.Key(), URL: pageURL, Err: err}
	}()

	rowsSelector, _ := definition.StripRoot(i.def.Search.Rows.Selector)
	rows := mergeRows(doc.Find(rowsSelector), i.def.Search.Rows.After)

	for _, row := range rows {
		release, err := i.parseRow(row, pageURL, tctx)
		if err != nil {
			html, _ := goquery.OuterHtml(row)
			i.tel.ReportWarning(report_row_skipped, err, i.tel.StoreLongMessage(html))
			continue
		}
		releases = append(releases, release)
	}
	return releases, nil
}

// dateFromHeaders walks back from the row to the closest header row matching the
// `dateheaders` block.
func (i *Indexer) dateFromHeaders(row *goquery.Selection) (string, error) {
	block := *i.def.Search.Rows.DateHeaders
	for prev := row.Prev(); prev.Length() > 0; prev = prev.Prev() {
		if !prev.Is(block.Selector) && prev.Find(block.Selector).Length() == 0 {
			continue
		}
		return i.pipeline.Extract(prev, block)
	}
	return "", &selector.Error{Selector: block.Selector, Err: selector.ErrSelectorNotFound}
}

func (i *Indexer) parseRow(row *goquery.Selection, pageURL string, tctx tmpl.Context) (Release, error) {
	results := map[string]tmpl.Value{}
	pipeline := i.pipeline.WithRenderer(func(text string) (string, error) {
		return tmpl.Render(text, tctx.With(results))
	})

	state := newRowState(i)
	for _, field := range i.def.Search.Fields {
		value, err := pipeline.Extract(row, field.Block)
		if err != nil {
			return Release{}, fmt.Errorf("field %s: %w", field.Name, err)
		}
		value = htmlutil.NormalizeSpace(value)
		results[".Result."+field.Name] = tmpl.String(value)

		err = state.assign(field.Name, value)
		if err != nil {
			return Release{}, fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	if state.release.PublishDate.IsZero() && i.def.Search.Rows.DateHeaders != nil {
		value, err := i.dateFromHeaders(row)
		if err != nil {
			return Release{}, fmt.Errorf("dateheaders: %w", err)
		}
		err = state.assign("date", htmlutil.NormalizeSpace(value))
		if err != nil {
			return Release{}, fmt.Errorf("dateheaders: %w", err)
		}
	}

	return state.finish(pageURL)
}

var (
	errNoTitle = errors.New("release has no title")
	errNoLink  = errors.New("release has no download, magnet or details link")
)
