package state

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/agentstation/utc"

	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/conflicts"
	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
)

// ReportHeader is the first line of every conflict report.
var ReportHeader = []string{"Conflict Type", "SKU", "Product ID", "Name", "Detail"}

// Reports manages per-store conflict reports.
type Reports struct {
	docs docstore.Store
}

// reportPrefix is the file name prefix shared by all of a store's reports.
func reportPrefix(store string) string {
	return strings.ToLower(store) + "_conflict_report_"
}

// ReportPath returns the document path of a store's report for day.
func ReportPath(store string, day utc.Time) string {
	return docstore.Join(constants.ConflictReportFolder, reportPrefix(store)+day.Time.UTC().Format("20060102")+".csv")
}

// EncodeReport renders rows as CSV with a header line.
func EncodeReport(rows []conflicts.Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ReportHeader); err != nil {
		return nil, errors.WrapIO("write", "report", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{string(r.Kind), r.SKU, r.ProductID.String(), r.Name, r.Detail}); err != nil {
			return nil, errors.WrapIO("write", "report", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.WrapIO("write", "report", err)
	}
	return buf.Bytes(), nil
}

// DecodeReport parses a report produced by EncodeReport.
func DecodeReport(data []byte) ([]conflicts.Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(ReportHeader)

	var rows []conflicts.Row
	for line := 0; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapParse("csv", "report", err)
		}
		if line == 0 {
			continue
		}
		rows = append(rows, conflicts.Row{
			Kind:      conflicts.Kind(rec[0]),
			SKU:       rec[1],
			ProductID: catalog.ProductID(rec[2]),
			Name:      rec[3],
			Detail:    rec[4],
		})
	}
	return rows, nil
}

// Replace makes rows the store's only report. A report for day is written
// when rows is non-empty; every other report of the store is deleted. It
// returns the written path (empty when nothing was written) and the deleted paths.
func (r *Reports) Replace(ctx context.Context, store string, day utc.Time, rows []conflicts.Row) (string, []string, error) {
	written := ""
	if len(rows) > 0 {
		data, err := EncodeReport(rows)
		if err != nil {
			return "", nil, err
		}
		written = ReportPath(store, day)
		if err := r.docs.Upload(ctx, written, data); err != nil {
			return "", nil, err
		}
	}

	names, err := r.docs.List(ctx, constants.ConflictReportFolder)
	if err != nil {
		return written, nil, err
	}
	var deleted []string
	for _, name := range names {
		if !strings.HasPrefix(name, reportPrefix(store)) {
			continue
		}
		p := docstore.Join(constants.ConflictReportFolder, name)
		if p == written {
			continue
		}
		if err := r.docs.Delete(ctx, p); err != nil {
			return written, deleted, err
		}
		deleted = append(deleted, p)
	}
	return written, deleted, nil
}

// Latest returns the rows of the store's most recent report, or nil when
// the store has none.
func (r *Reports) Latest(ctx context.Context, store string) ([]conflicts.Row, error) {
	names, err := r.docs.List(ctx, constants.ConflictReportFolder)
	if err != nil {
		return nil, err
	}
	latest := ""
	for _, name := range names {
		if strings.HasPrefix(name, reportPrefix(store)) && name > latest {
			latest = name
		}
	}
	if latest == "" {
		return nil, nil
	}
	data, err := r.docs.Download(ctx, docstore.Join(constants.ConflictReportFolder, latest))
	if err != nil {
		return nil, err
	}
	return DecodeReport(data)
}
