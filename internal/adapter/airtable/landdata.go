package airtable

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/landfiles"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// ShapefileField is the land-table field carrying the zipped shapefile
// attachment.
const ShapefileField = "shapefile_polygon"

// MetadataArtifact is the CSV written alongside the downloaded geometry.
const MetadataArtifact = "land_metadata.csv"

// =============================================================================
// LAND DATA DOWNLOAD
// =============================================================================

// DownloadLandData fetches the land table, downloads each plot's geometry
// attachments, resolves the linked POD and biodiversity-project references,
// and returns one metadata record per plot that carried geometry. Rows with
// neither a KML nor a shapefile attachment are skipped entirely.
func (a *Adapter) DownloadLandData(ctx context.Context, req *adapter.LandDataRequest) ([]tabular.Record, error) {
	files := a.files
	if req != nil && (req.KMLDir != "" || req.ShapefileDir != "") {
		kmlDir, shpDir := a.files.KMLPrefix, a.files.ShapePrefix
		if req.KMLDir != "" {
			kmlDir = req.KMLDir
		}
		if req.ShapefileDir != "" {
			shpDir = req.ShapefileDir
		}
		files = landfiles.NewDownloader(a.files.Store, kmlDir, shpDir, a.log)
	}
	if err := files.Reset(ctx); err != nil {
		return nil, fmt.Errorf("resetting artifact store: %w", err)
	}

	records, err := a.fetchAll(ctx, a.client, a.cfg.LandTable)
	if err != nil {
		return nil, err
	}

	// One cache per linked field keeps the resolution passes independent.
	podCache := tabular.NewCache()
	projCache := tabular.NewCache()

	var metadata []tabular.Record
	var withGeometry, kmlDownloaded, shpDownloaded int

	for _, rec := range records {
		kmlURL, hasKML := attachmentURL(rec.Fields[a.cfg.AttachmentField])
		shpURL, hasSHP := attachmentURL(rec.Fields[ShapefileField])
		if !hasKML && !hasSHP {
			continue
		}
		withGeometry++
		plotID := padPlotID(rec.Fields["plot_id"])

		if hasKML {
			if err := files.FetchKML(ctx, plotID, kmlURL); err != nil {
				a.log.Error("kml download failed", "plot_id", plotID, "error", err)
			} else {
				kmlDownloaded++
				a.log.Info("downloaded kml", "plot_id", plotID)
			}
		}
		if hasSHP {
			err := files.FetchShapefile(ctx, plotID, shpURL)
			var bad *landfiles.ErrBadArchive
			switch {
			case errors.As(err, &bad):
				a.log.Error("invalid shapefile archive", "plot_id", plotID, "error", err)
			case err != nil:
				a.log.Error("shapefile download failed", "plot_id", plotID, "error", err)
			default:
				shpDownloaded++
				a.log.Info("downloaded shapefile", "plot_id", plotID)
			}
		}

		pod := a.resolveName(ctx, rec.Fields["POD"], "CODE", podCache)
		projBio := a.resolveName(ctx, rec.Fields["project_biodiversity"], "project_id", projCache)

		area := rec.Fields["area_certifier"]
		if area == nil {
			area = 0.0
		}

		metadata = append(metadata, tabular.Record{ID: rec.ID, Fields: map[string]any{
			"plot_id":              plotID,
			"POD":                  pod,
			"project_biodiversity": projBio,
			"area_certifier":       area,
		}})
	}

	if err := a.writeMetadata(ctx, files, metadata); err != nil {
		a.log.Error("metadata artifact write failed", "error", err)
	}

	a.logEvent(ctx, "Unique PODs found:", formatCounts(metadata, "POD"))
	a.logEvent(ctx, "Unique Project Biodiversity found:", formatCounts(metadata, "project_biodiversity"))
	a.logEvent(ctx, "Total records with KML or shapefile:", strconv.Itoa(withGeometry))
	a.logEvent(ctx, "Total KMLs downloaded:", strconv.Itoa(kmlDownloaded))
	a.logEvent(ctx, "Total shapefiles downloaded:", strconv.Itoa(shpDownloaded))

	return metadata, nil
}

// resolveName dereferences a linked-record field to a display value,
// tolerating both list and scalar id shapes. A broken reference yields "".
func (a *Adapter) resolveName(ctx context.Context, idValue any, field string, cache *tabular.Cache) string {
	id, _ := tabular.First(idValue).(string)
	if id == "" {
		return ""
	}
	v, ok := a.resolveFrom(ctx, a.client, a.cfg.LandTable, id, field, cache)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (a *Adapter) writeMetadata(ctx context.Context, files *landfiles.Downloader, metadata []tabular.Record) error {
	header := []string{"plot_id", "POD", "project_biodiversity", "area_certifier"}
	rows := make([][]string, len(metadata))
	for i, rec := range metadata {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = fmt.Sprint(tabular.CoerceValue(rec.Fields[col]))
		}
		rows[i] = row
	}
	return files.WriteCSV(ctx, MetadataArtifact, header, rows)
}

// attachmentURL extracts the download URL from an attachment field value:
// a list of objects each carrying a "url" key.
func attachmentURL(v any) (string, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return "", false
	}
	u, ok := first["url"].(string)
	if !ok || u == "" {
		return "", false
	}
	return u, true
}

// padPlotID renders a plot id as a zero-padded three-character string.
func padPlotID(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = ""
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// formatCounts summarizes the distinct values of a metadata column as
// "value=count" pairs, sorted by value for stable log output.
func formatCounts(records []tabular.Record, field string) string {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[fmt.Sprint(rec.Fields[field])]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
