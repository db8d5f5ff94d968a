// Package commit sequences the pipeline that turns a confirmed session
// into persisted records, generated artifacts and an operator notification.
package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/elektromontazh/orderbot/internal/artifact"
	"github.com/elektromontazh/orderbot/internal/domain"
	"github.com/elektromontazh/orderbot/internal/pricing"
	"github.com/elektromontazh/orderbot/internal/shared"
	"github.com/google/uuid"
)

// OrderStore is the authoritative sink for committed orders.
type OrderStore interface {
	InsertOrder(ctx context.Context, order *domain.Order) (int64, error)
}

// LedgerAppender is the human-readable export sink.
type LedgerAppender interface {
	Append(order *domain.Order) error
}

// ArtifactBuilder produces the summary document and the bundle.
type ArtifactBuilder interface {
	Build(sess *domain.Session) (artifact.Result, error)
}

// Notifier delivers the finished bundle to the operator.
type Notifier interface {
	NotifyOrder(ctx context.Context, bundlePath, caption string) error
}

// Reporter carries operator-facing issue reports (reconciliation,
// delivery failures). Reports must never reach the end user.
type Reporter interface {
	ReportIssue(ctx context.Context, text string)
}

// SessionRemover tears a session out of the session store.
type SessionRemover interface {
	Delete(userID int64)
}

// Orchestrator runs the commit pipeline exactly once per confirmed
// session. Cleanup of transient files and session teardown happen on
// every exit path.
type Orchestrator struct {
	repo     OrderStore
	ledger   LedgerAppender
	builder  ArtifactBuilder
	notifier Notifier
	reporter Reporter
	sessions SessionRemover
	baseURL  string
}

// New creates a commit orchestrator. baseURL is the public address the
// download link is built from.
func New(repo OrderStore, ledger LedgerAppender, builder ArtifactBuilder,
	notifier Notifier, reporter Reporter, sessions SessionRemover, baseURL string) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		ledger:   ledger,
		builder:  builder,
		notifier: notifier,
		reporter: reporter,
		sessions: sessions,
		baseURL:  baseURL,
	}
}

// Commit persists the order, builds the artifacts and notifies the
// operator. A non-nil error means the order was not saved and the user
// must restart the dialog; partial sink failures and delivery failures
// are reported to the operator but leave the commit successful. Failed
// commits are never retried automatically.
func (o *Orchestrator) Commit(ctx context.Context, sess *domain.Session) error {
	log := slog.With("commit_id", uuid.NewString(), "user_id", sess.UserID)

	var res artifact.Result
	defer func() {
		o.cleanup(sess, res.SummaryPath, log)
		o.sessions.Delete(sess.UserID)
	}()

	// Freeze the price. Normally set at the address step; the committed
	// total must equal the total the user confirmed, so it is never
	// recomputed once set.
	if !sess.PriceSet {
		sess.TotalPrice = pricing.Quote(sess.WallType, sess.NeedsChanneling, sess.AreaSqm)
		sess.PriceSet = true
	}
	order := sess.Order(time.Now())

	// The two sinks are independent. Losing the order is worse than a
	// lagging export, so one failure keeps the commit successful and goes
	// to the operator channel for reconciliation.
	id, storeErr := o.repo.InsertOrder(ctx, order)
	if storeErr == nil {
		order.ID = id
		log.Info("Order recorded", "order_id", id, "total", order.Total)
	}
	ledgerErr := o.ledger.Append(order)

	if storeErr != nil && ledgerErr != nil {
		return fmt.Errorf("persist order: %w", errors.Join(storeErr, ledgerErr))
	}
	if storeErr != nil || ledgerErr != nil {
		o.reportPartialPersistence(ctx, order, storeErr, ledgerErr, log)
	}

	var err error
	res, err = o.builder.Build(sess)
	if err != nil {
		return fmt.Errorf("build artifacts: %w", err)
	}
	log.Info("Bundle built", "bundle", res.BundleName)

	caption := fmt.Sprintf("New order from @%s\nDownload: %s/files/%s",
		order.DisplayName, o.baseURL, res.BundleName)
	if err := o.notifier.NotifyOrder(ctx, res.BundlePath, caption); err != nil {
		// The order is already persisted; a lost notification is a
		// delivery failure, not a commit failure.
		log.Error("Notification delivery failed", "bundle", res.BundleName, "error", err)
		o.reporter.ReportIssue(ctx, fmt.Sprintf(
			"Delivery failure: bundle %s for the order from @%s was not sent (%s/files/%s)",
			res.BundleName, order.DisplayName, o.baseURL, res.BundleName))
	}

	return nil
}

func (o *Orchestrator) reportPartialPersistence(ctx context.Context, order *domain.Order, storeErr, ledgerErr error, log *slog.Logger) {
	var text string
	switch {
	case storeErr != nil:
		text = fmt.Sprintf("Reconciliation needed: order from @%s is in the ledger but missing from the database", order.DisplayName)
		if shared.IsSQLiteConflictError(storeErr) {
			text += " (database was busy)"
		}
		log.Error("Authoritative write failed", "error", storeErr)
	case ledgerErr != nil:
		text = fmt.Sprintf("Reconciliation needed: order #%d from @%s is in the database but missing from the ledger", order.ID, order.DisplayName)
		log.Error("Ledger write failed", "order_id", order.ID, "error", ledgerErr)
	}
	o.reporter.ReportIssue(ctx, text)
}

// cleanup removes the transient files of a commit: downloaded photos and
// the generated summary document. The bundle is the deliverable and is
// kept. Runs whether the pipeline succeeded or failed.
func (o *Orchestrator) cleanup(sess *domain.Session, summaryPath string, log *slog.Logger) {
	paths := append([]string{}, sess.Photos...)
	if summaryPath != "" {
		paths = append(paths, summaryPath)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove transient file", "path", path, "error", err)
		}
	}
}
