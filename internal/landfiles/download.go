package landfiles

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"
)

// ErrBadArchive marks a shapefile archive that could not be read. Callers
// skip the plot and continue.
type ErrBadArchive struct {
	PlotID string
	Err    error
}

func (e *ErrBadArchive) Error() string {
	return fmt.Sprintf("bad shapefile archive for plot %s: %v", e.PlotID, e.Err)
}

func (e *ErrBadArchive) Unwrap() error { return e.Err }

// Downloader fetches geometry attachments over HTTP and stores them.
// Attachment URLs are pre-signed; no API credential is attached.
type Downloader struct {
	HTTP        *http.Client
	Store       ObjectStore
	KMLPrefix   string
	ShapePrefix string
	Log         *slog.Logger
}

// NewDownloader builds a downloader over the given store. Empty prefixes
// take the conventional directory names.
func NewDownloader(store ObjectStore, kmlPrefix, shapePrefix string, log *slog.Logger) *Downloader {
	if kmlPrefix == "" {
		kmlPrefix = "KML"
	}
	if shapePrefix == "" {
		shapePrefix = "SHPoriginal"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{
		HTTP:        &http.Client{Timeout: 60 * time.Second},
		Store:       store,
		KMLPrefix:   kmlPrefix,
		ShapePrefix: shapePrefix,
		Log:         log,
	}
}

// Reset clears both artifact prefixes for a fresh run.
func (d *Downloader) Reset(ctx context.Context) error {
	if err := d.Store.Reset(ctx, d.KMLPrefix); err != nil {
		return err
	}
	return d.Store.Reset(ctx, d.ShapePrefix)
}

// FetchKML downloads the plot's KML attachment and stores it as
// {kmlPrefix}/{plotID}.kml.
func (d *Downloader) FetchKML(ctx context.Context, plotID, url string) error {
	data, err := d.fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("downloading kml for plot %s: %w", plotID, err)
	}
	return d.Store.Put(ctx, path.Join(d.KMLPrefix, plotID+".kml"), data)
}

// FetchShapefile downloads the plot's zipped shapefile, extracts it, and
// stores each member as {shapePrefix}/{plotID}/{name}. A corrupt archive
// yields an ErrBadArchive and stores nothing.
func (d *Downloader) FetchShapefile(ctx context.Context, plotID, url string) error {
	data, err := d.fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("downloading shapefile for plot %s: %w", plotID, err)
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ErrBadArchive{PlotID: plotID, Err: err}
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		// Flatten to the base name; archives sometimes nest a directory.
		name := path.Base(file.Name)
		rc, err := file.Open()
		if err != nil {
			return &ErrBadArchive{PlotID: plotID, Err: err}
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return &ErrBadArchive{PlotID: plotID, Err: err}
		}
		if err := d.Store.Put(ctx, path.Join(d.ShapePrefix, plotID, name), content); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV stores tabular metadata as a CSV artifact under key.
func (d *Downloader) WriteCSV(ctx context.Context, key string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return d.Store.Put(ctx, key, buf.Bytes())
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
