package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ExportPDF prints the html report at src to a pdf at dst with a headless browser.
func ExportPDF(ctx context.Context, src, dst string) (err error) {
	src, err = filepath.Abs(src)
	if err != nil {
		return
	}
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdf []byte
	if err = chromedp.Run(ctx,
		chromedp.Navigate(fileURL(src)),
		chromedp.ActionFunc(func(ctx context.Context) (err error) {
			pdf, _, err = page.PrintToPDF().
				WithPreferCSSPageSize(false).
				WithScale(0.9).
				WithDisplayHeaderFooter(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithLandscape(false).
				WithMarginTop(1).
				WithMarginRight(0.3).
				WithMarginBottom(1.3).
				WithMarginLeft(0.3).
				WithPrintBackground(true).
				WithHeaderTemplate(`<span></span>`).
				WithFooterTemplate(`<h4 style="font-size:10px !important; width: 100%; margin-left:30px; margin-right:30px; display: flex; justify-content: flex-end;"><span>Page <span class='pageNumber'></span> of <span class='totalPages'></span></span></h4>`).
				Do(ctx)
			return
		}),
	); err != nil {
		return fmt.Errorf("could not print %s: %w", src, err)
	}
	if err = os.WriteFile(dst, pdf, 0o600); err != nil {
		return fmt.Errorf("could not write %s: %w", dst, err)
	}
	return
}

// ExportPDFs prints both html reports of the session next to them.
func (s *Session) ExportPDFs(ctx context.Context) (paths []string, err error) {
	if s.Format != HTML {
		return nil, fmt.Errorf("pdf export needs html reports, got %s", s.Format)
	}
	for _, src := range []string{s.DetectionsPath, s.CleanPath} {
		dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".pdf"
		if err = ExportPDF(ctx, src, dst); err != nil {
			return
		}
		logger.Info("pdf report exported", slog.String("path", dst))
		paths = append(paths, dst)
	}
	return
}
