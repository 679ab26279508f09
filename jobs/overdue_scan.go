package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// OverdueScanJob sweeps tasks whose due date has passed without
// completion and surfaces them to assignees.
type OverdueScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	Mailer *Client
	clock  func() time.Time
}

// NewOverdueScanJob initialises the overdue sweep handler.
func NewOverdueScanJob(pool *pgxpool.Pool, logger *slog.Logger, mailer *Client) *OverdueScanJob {
	return &OverdueScanJob{
		Pool:   pool,
		Logger: logger,
		Mailer: mailer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type overdueTask struct {
	ID            int64
	Title         string
	DueDate       time.Time
	AssigneeName  string
	AssigneeEmail string
	Department    string
}

// Handle executes the overdue sweep.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceHours < 0 {
		payload.GraceHours = 0
	}

	start := j.now()
	cutoff := start.Add(-time.Duration(payload.GraceHours) * time.Hour)

	logger := j.logger().With(slog.Int("grace_hours", payload.GraceHours))
	logger.Info("starting overdue scan")

	overdue, err := j.scan(ctx, cutoff)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, task := range overdue {
		logger.Warn("task overdue",
			slog.Int64("task_id", task.ID),
			slog.String("title", task.Title),
			slog.Time("due_date", task.DueDate),
			slog.String("assignee", task.AssigneeEmail),
			slog.String("department", task.Department),
		)
		if payload.Notify && j.Mailer != nil && task.AssigneeEmail != "" {
			task := task
			g.Go(func() error {
				_, err := j.Mailer.EnqueueSendEmail(gctx, SendEmailPayload{
					To:      task.AssigneeEmail,
					Subject: fmt.Sprintf("Task overdue: %s", task.Title),
					Body:    fmt.Sprintf("Hi %s, the task %q was due on %s and is still open.", task.AssigneeName, task.Title, task.DueDate.Format("2006-01-02")),
				})
				if err != nil {
					logger.Error("enqueue reminder failed", slog.Int64("task_id", task.ID), slog.Any("error", err))
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	logger.Info("completed overdue scan",
		slog.Int("overdue", len(overdue)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *OverdueScanJob) scan(ctx context.Context, cutoff time.Time) ([]overdueTask, error) {
	if j.Pool == nil {
		return nil, errors.New("overdue scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `
		SELECT t.id, t.title, t.due_date, u.name, u.email, d.name
		FROM tasks t
		JOIN users u ON u.id = t.assigned_to
		JOIN departments d ON d.id = t.department_id
		WHERE t.status <> 'completed' AND t.due_date IS NOT NULL AND t.due_date < $1
		ORDER BY t.due_date`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overdue []overdueTask
	for rows.Next() {
		var task overdueTask
		if err := rows.Scan(&task.ID, &task.Title, &task.DueDate, &task.AssigneeName, &task.AssigneeEmail, &task.Department); err != nil {
			return nil, err
		}
		overdue = append(overdue, task)
	}
	return overdue, rows.Err()
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskTypeOverdueScan))
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
