// Package artifact generates the order summary document and the
// downloadable bundle for a committed session.
package artifact

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/elektromontazh/orderbot/internal/domain"
	"github.com/go-pdf/fpdf"
)

// Result describes the files produced for one commit. SummaryPath is
// transient and deleted by the orchestrator after the commit; the bundle
// is the deliverable and is retained.
type Result struct {
	SummaryPath string
	BundlePath  string
	BundleName  string
}

// Builder writes summary documents and bundles into the files directory
// exposed by the download server.
type Builder struct {
	filesDir string
}

// NewBuilder creates a builder writing into filesDir.
func NewBuilder(filesDir string) *Builder {
	return &Builder{filesDir: filesDir}
}

// Build produces the summary PDF and the zip bundle for a session. The
// bundle name is URL-safe and stable, derived from the user id and the
// commit timestamp. Bundle creation is atomic: the archive is written to a
// temporary path and renamed into place only when complete, so a failure
// never leaves a partial bundle in a servable location.
func (b *Builder) Build(sess *domain.Session) (Result, error) {
	stamp := time.Now().Unix()
	res := Result{
		SummaryPath: filepath.Join(b.filesDir, fmt.Sprintf("request_%d_%d.pdf", sess.UserID, stamp)),
		BundleName:  fmt.Sprintf("order_%d_%d.zip", sess.UserID, stamp),
	}
	res.BundlePath = filepath.Join(b.filesDir, res.BundleName)

	if err := writeSummary(res.SummaryPath, sess); err != nil {
		return res, fmt.Errorf("write summary: %w", err)
	}
	if err := writeBundle(res.BundlePath, append([]string{res.SummaryPath}, sess.Photos...)); err != nil {
		return res, fmt.Errorf("write bundle: %w", err)
	}
	return res, nil
}

func writeSummary(path string, sess *domain.Session) error {
	channeling := "no"
	if sess.NeedsChanneling {
		channeling = "yes"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("ORDER from %s", sess.DisplayName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)

	lines := []string{
		fmt.Sprintf("Full name: %s", sess.FullName),
		fmt.Sprintf("Phone: %s", sess.Phone),
		fmt.Sprintf("Address: %s", sess.Address),
		fmt.Sprintf("Wall type: %s", sess.WallType.Label()),
		fmt.Sprintf("Channeling: %s", channeling),
		fmt.Sprintf("Area: %g m2", sess.AreaSqm),
		fmt.Sprintf("Total: %.2f", sess.TotalPrice),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf %s: %w", path, err)
	}
	return nil
}

// writeBundle zips the given files under their base names. All writing
// happens on a .tmp path that is renamed into place on success and removed
// on any failure.
func writeBundle(path string, files []string) (err error) {
	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create bundle temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err = addToZip(zw, file); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	return nil
}

func addToZip(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open bundle entry %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create bundle entry %s: %w", path, err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return fmt.Errorf("copy bundle entry %s: %w", path, err)
	}
	return nil
}
