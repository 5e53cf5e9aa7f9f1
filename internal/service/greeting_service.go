package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	"github.com/noah-isme/birthday-greetings-api/internal/locale"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/jobs"
	"github.com/noah-isme/birthday-greetings-api/pkg/mailer"
)

// JobTypeGreetingDelivery identifies queued card emails.
const JobTypeGreetingDelivery = "greeting.delivery"

// Greeting run triggers.
const (
	TriggerScheduler = "scheduler"
	TriggerManual    = "manual"
)

// ErrRunInProgress is returned when a greeting run is already executing.
var ErrRunInProgress = appErrors.New("RUN_IN_PROGRESS", http.StatusConflict, "a greeting run is already in progress")

// DefaultCardTemplate is used when no stored template matches an employee.
var DefaultCardTemplate = models.CardTemplate{
	Name:         "default",
	TextTemplate: "Happy birthday, " + models.NamePlaceholder + "!",
	FontSize:     48,
	FontColor:    "#333333",
	TextX:        80,
	TextY:        260,
}

type greetingEmployeeSource interface {
	ListActive(ctx context.Context) ([]models.Employee, error)
}

type greetingLogStore interface {
	Create(ctx context.Context, entry *models.GreetingLog) error
	GreetedOn(ctx context.Context, date time.Time, employeeIDs []string) (map[string]bool, error)
	List(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, int, error)
}

type greetingTemplates interface {
	List(ctx context.Context) ([]models.CardTemplate, error)
	Render(ctx context.Context, tpl *models.CardTemplate, name string) ([]byte, error)
}

type cardStore interface {
	Save(bucket, name string, data []byte) (string, error)
	Read(bucket, rel string) ([]byte, error)
	URL(bucket string, rel *string) string
}

type settingsSource interface {
	Effective(ctx context.Context) (*models.MailingSettings, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// GreetingConfig tunes the dispatch run.
type GreetingConfig struct {
	RenderWorkers int
	SMTPTimeout   time.Duration
	SMTPTLSMode   mailer.TLSMode
	Language      string
}

// GreetingService finds today's birthdays, renders their cards and queues the emails.
type GreetingService struct {
	employees  greetingEmployeeSource
	logs       greetingLogStore
	templates  greetingTemplates
	files      cardStore
	settings   settingsSource
	sender     mailer.Sender
	queue      jobEnqueuer
	translator *locale.Translator
	clock      birthday.Clock
	metrics    *MetricsService
	audit      auditWriter
	cfg        GreetingConfig
	logger     *zap.Logger

	runMu     sync.Mutex
	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// NewGreetingService constructs a GreetingService. The queue is attached later with
// SetQueue because the queue's handler is the service itself.
func NewGreetingService(employees greetingEmployeeSource, logs greetingLogStore, templates greetingTemplates, files cardStore, settings settingsSource, sender mailer.Sender, translator *locale.Translator, clock birthday.Clock, metrics *MetricsService, audit auditWriter, cfg GreetingConfig, logger *zap.Logger) *GreetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if translator == nil {
		translator = locale.MustNew("")
	}
	if clock == nil {
		clock = birthday.SystemClock{}
	}
	if sender == nil {
		sender = mailer.NewSMTPSender()
	}
	if cfg.RenderWorkers <= 0 {
		cfg.RenderWorkers = 4
	}
	if cfg.SMTPTimeout <= 0 {
		cfg.SMTPTimeout = 15 * time.Second
	}
	return &GreetingService{
		employees:  employees,
		logs:       logs,
		templates:  templates,
		files:      files,
		settings:   settings,
		sender:     sender,
		translator: translator,
		clock:      clock,
		metrics:    metrics,
		audit:      audit,
		cfg:        cfg,
		logger:     logger,
		pending:    make(map[string]struct{}),
	}
}

// SetQueue attaches the delivery queue.
func (s *GreetingService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// RunManual triggers a run on behalf of an HR user and audits it.
func (s *GreetingService) RunManual(ctx context.Context, actor models.AuthContext) (*models.GreetingRunResult, error) {
	result, err := s.Run(ctx, TriggerManual)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		entry := &models.AuditLog{Action: models.AuditActionGreetingRun, Resource: "greetings"}
		if actor.UserID != "" {
			userID := actor.UserID
			entry.UserID = &userID
		}
		entry.NewValues, _ = json.Marshal(result)
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record greeting run audit log", zap.Error(err))
		}
	}
	return result, nil
}

// Run greets every active, email-enabled employee whose birthday is observed today
// and who has not been greeted yet today.
func (s *GreetingService) Run(ctx context.Context, trigger string) (*models.GreetingRunResult, error) {
	if !s.runMu.TryLock() {
		return nil, appErrors.Clone(ErrRunInProgress, "")
	}
	defer s.runMu.Unlock()

	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "greeting delivery queue not configured")
	}
	s.metrics.RecordGreetingRun(trigger)

	today := birthday.Today(s.clock)
	result := &models.GreetingRunResult{Date: today.String(), Employees: []string{}}

	candidates, err := s.candidates(ctx, today)
	if err != nil {
		return nil, err
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		return result, nil
	}

	ids := make([]string, len(candidates))
	for i, e := range candidates {
		ids[i] = e.ID
	}
	greeted, err := s.logs.GreetedOn(ctx, today.Time(), ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load greeting history")
	}
	templates, err := s.templates.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list card templates")
	}
	settings, err := s.settings.Effective(ctx)
	if err != nil {
		return nil, err
	}
	maxAttempts := settings.RetryAttempts + 1

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RenderWorkers)
	for _, employee := range candidates {
		if greeted[employee.ID] || !s.markPending(today, employee.ID) {
			mu.Lock()
			result.Skipped++
			mu.Unlock()
			continue
		}
		employee := employee
		g.Go(func() error {
			delivery, err := s.prepare(gctx, employee, today, templates)
			if err == nil {
				err = s.queue.Enqueue(jobs.Job{
					ID:          uuid.NewString(),
					Type:        JobTypeGreetingDelivery,
					Payload:     *delivery,
					MaxAttempts: maxAttempts,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.clearPending(today, employee.ID)
				result.Failed++
				s.logger.Error("failed to prepare greeting", zap.String("employee_id", employee.ID), zap.Error(err))
				s.recordFailure(gctx, employee, delivery, today, 0, err)
				return nil
			}
			result.Queued++
			result.Employees = append(result.Employees, employee.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Internal(err, "greeting run failed")
	}
	sort.Strings(result.Employees)

	s.logger.Info("greeting run finished",
		zap.String("trigger", trigger),
		zap.String("date", result.Date),
		zap.Int("candidates", result.Candidates),
		zap.Int("queued", result.Queued),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *GreetingService) candidates(ctx context.Context, today birthday.Date) ([]models.Employee, error) {
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load employees")
	}
	eligible := make(map[string]models.Employee, len(employees))
	records := make([]birthday.Record, 0, len(employees))
	for _, e := range employees {
		if !e.ReceiveEmail || e.Email == "" {
			continue
		}
		eligible[e.ID] = e
		records = append(records, e.BirthdayRecord())
	}
	proximities, err := birthday.ClassifyAndSort(records, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidDate.Code, appErrors.ErrInvalidDate.Status, err.Error())
	}
	todays := birthday.TodayOnly(proximities)
	out := make([]models.Employee, 0, len(todays))
	for _, p := range todays {
		out = append(out, eligible[p.ID])
	}
	s.metrics.SetBirthdaysToday(len(out))
	return out, nil
}

func (s *GreetingService) prepare(ctx context.Context, employee models.Employee, today birthday.Date, templates []models.CardTemplate) (*dto.GreetingDelivery, error) {
	tpl := SelectTemplate(templates, employee.DepartmentID, employee.PositionID)
	delivery := &dto.GreetingDelivery{
		EmployeeID:   employee.ID,
		EmployeeName: employee.FullName(),
		Email:        employee.Email,
		GreetingDate: today.String(),
	}
	if tpl == nil {
		fallback := DefaultCardTemplate
		tpl = &fallback
	} else {
		id, name := tpl.ID, tpl.Name
		delivery.TemplateID, delivery.TemplateName = &id, &name
	}

	start := time.Now()
	pdf, err := s.templates.Render(ctx, tpl, delivery.EmployeeName)
	s.metrics.ObserveCardRender(time.Since(start))
	if err != nil {
		return delivery, err
	}
	rel, err := s.files.Save(BucketCards, fmt.Sprintf("%s/%s-%s.pdf", today.String(), employee.ID, uuid.NewString()), pdf)
	if err != nil {
		return delivery, err
	}
	delivery.CardPath = rel
	return delivery, nil
}

// Deliver sends one queued card. Returning an error makes the queue retry it.
func (s *GreetingService) Deliver(ctx context.Context, job jobs.Job) error {
	delivery, err := deliveryFromJob(job)
	if err != nil {
		s.logger.Error("dropping malformed greeting job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	settings, err := s.settings.Effective(ctx)
	if err != nil {
		return err
	}
	card, err := s.files.Read(BucketCards, delivery.CardPath)
	if err != nil {
		return err
	}

	lang := s.translator.Default()
	data := map[string]interface{}{"Name": delivery.EmployeeName}
	body := s.translator.Message(lang, "GreetingBody", data)
	msg := mailer.Message{
		To:       delivery.Email,
		Subject:  s.translator.Message(lang, "GreetingSubject", data),
		TextBody: body,
		HTMLBody: "<p>" + html.EscapeString(body) + "</p>",
		Attachments: []mailer.Attachment{{
			Filename:    "birthday-card.pdf",
			ContentType: "application/pdf",
			Data:        card,
		}},
	}
	if err := s.sender.Send(ctx, mailer.Settings{
		Host:     settings.SMTPHost,
		Port:     settings.SMTPPort,
		User:     settings.SMTPUser,
		Password: settings.SMTPPass,
		From:     settings.FromEmail,
		TLSMode:  s.cfg.SMTPTLSMode,
		Timeout:  s.cfg.SMTPTimeout,
	}, msg); err != nil {
		return err
	}

	date := parseGreetingDate(delivery.GreetingDate)
	entry := &models.GreetingLog{
		EmployeeID:   delivery.EmployeeID,
		EmployeeName: delivery.EmployeeName,
		TemplateID:   delivery.TemplateID,
		TemplateName: delivery.TemplateName,
		ImagePath:    delivery.CardPath,
		GreetingDate: date.Time(),
		SentAt:       s.clock.Now().UTC(),
		Success:      true,
		Attempts:     job.Attempt + 1,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record greeting", zap.String("employee_id", delivery.EmployeeID), zap.Error(err))
	}
	s.clearPending(date, delivery.EmployeeID)
	s.metrics.RecordGreeting(true)
	s.logger.Info("greeting sent", zap.String("employee_id", delivery.EmployeeID), zap.Int("attempts", entry.Attempts))
	return nil
}

// DeliveryExhausted records a delivery that used all its attempts.
func (s *GreetingService) DeliveryExhausted(ctx context.Context, job jobs.Job, cause error) {
	delivery, err := deliveryFromJob(job)
	if err != nil {
		return
	}
	date := parseGreetingDate(delivery.GreetingDate)
	employee := models.Employee{ID: delivery.EmployeeID, FirstName: delivery.EmployeeName}
	s.recordFailure(ctx, employee, &delivery, date, job.Attempt, cause)
	s.clearPending(date, delivery.EmployeeID)
}

func (s *GreetingService) recordFailure(ctx context.Context, employee models.Employee, delivery *dto.GreetingDelivery, date birthday.Date, attempts int, cause error) {
	message := cause.Error()
	entry := &models.GreetingLog{
		EmployeeID:   employee.ID,
		EmployeeName: employee.FullName(),
		GreetingDate: date.Time(),
		SentAt:       s.clock.Now().UTC(),
		Success:      false,
		Attempts:     attempts,
		ErrorMessage: &message,
	}
	if delivery != nil {
		entry.EmployeeName = delivery.EmployeeName
		entry.TemplateID = delivery.TemplateID
		entry.TemplateName = delivery.TemplateName
		entry.ImagePath = delivery.CardPath
	}
	if err := s.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("failed to record greeting failure", zap.String("employee_id", employee.ID), zap.Error(err))
	}
	s.metrics.RecordGreeting(false)
}

// History lists greeting logs with signed card links.
func (s *GreetingService) History(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, *models.Pagination, error) {
	logs, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list greeting history")
	}
	if logs == nil {
		logs = []models.GreetingLog{}
	}
	for i := range logs {
		if logs[i].ImagePath != "" {
			logs[i].ImageURL = s.files.URL(BucketCards, &logs[i].ImagePath)
		}
	}
	return logs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *GreetingService) markPending(date birthday.Date, employeeID string) bool {
	key := date.String() + "/" + employeeID
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if _, ok := s.pending[key]; ok {
		return false
	}
	s.pending[key] = struct{}{}
	return true
}

func (s *GreetingService) clearPending(date birthday.Date, employeeID string) {
	s.pendingMu.Lock()
	delete(s.pending, date.String()+"/"+employeeID)
	s.pendingMu.Unlock()
}

func deliveryFromJob(job jobs.Job) (dto.GreetingDelivery, error) {
	switch payload := job.Payload.(type) {
	case dto.GreetingDelivery:
		return payload, nil
	case *dto.GreetingDelivery:
		if payload != nil {
			return *payload, nil
		}
	}
	return dto.GreetingDelivery{}, fmt.Errorf("unexpected payload %T", job.Payload)
}

func parseGreetingDate(raw string) birthday.Date {
	d, err := birthday.ParseDate(raw)
	if err != nil {
		return birthday.DateOf(time.Now())
	}
	return d
}
