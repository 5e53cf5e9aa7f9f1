package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/birthday-greetings-api/internal/birthday"
	"github.com/noah-isme/birthday-greetings-api/internal/dto"
	"github.com/noah-isme/birthday-greetings-api/internal/models"
	appErrors "github.com/noah-isme/birthday-greetings-api/pkg/errors"
	"github.com/noah-isme/birthday-greetings-api/pkg/jobs"
	"github.com/noah-isme/birthday-greetings-api/pkg/mailer"
)

type fakeGreetingLogs struct {
	mu   sync.Mutex
	logs []models.GreetingLog
}

func (f *fakeGreetingLogs) Create(ctx context.Context, entry *models.GreetingLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeGreetingLogs) GreetedOn(ctx context.Context, date time.Time, employeeIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, entry := range f.logs {
		if entry.Success && entry.GreetingDate.Equal(date) {
			out[entry.EmployeeID] = true
		}
	}
	return out, nil
}

func (f *fakeGreetingLogs) List(ctx context.Context, filter models.GreetingLogFilter) ([]models.GreetingLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GreetingLog(nil), f.logs...), len(f.logs), nil
}

type fakeGreetingTemplates struct {
	mu        sync.Mutex
	templates []models.CardTemplate
	rendered  map[string]string
	failFor   string
}

func (f *fakeGreetingTemplates) List(ctx context.Context) ([]models.CardTemplate, error) {
	return f.templates, nil
}

func (f *fakeGreetingTemplates) Render(ctx context.Context, tpl *models.CardTemplate, name string) ([]byte, error) {
	if name == f.failFor {
		return nil, errors.New("font missing")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rendered == nil {
		f.rendered = map[string]string{}
	}
	f.rendered[name] = tpl.Name
	return []byte("%PDF card for " + name), nil
}

type fakeCardStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeCardStore) Save(bucket, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[name] = data
	return name, nil
}

func (f *fakeCardStore) Read(bucket, rel string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[rel]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return data, nil
}

func (f *fakeCardStore) URL(bucket string, rel *string) string {
	return "/files/" + bucket + "/" + *rel
}

type fakeSettings struct {
	settings models.MailingSettings
}

func (f *fakeSettings) Effective(ctx context.Context) (*models.MailingSettings, error) {
	clone := f.settings
	return &clone, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeSender struct {
	settings []mailer.Settings
	sent     []mailer.Message
	err      error
}

func (f *fakeSender) Send(ctx context.Context, settings mailer.Settings, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.settings = append(f.settings, settings)
	f.sent = append(f.sent, msg)
	return nil
}

type greetingFixture struct {
	svc       *GreetingService
	logs      *fakeGreetingLogs
	templates *fakeGreetingTemplates
	cards     *fakeCardStore
	queue     *fakeQueue
	sender    *fakeSender
	audit     *fakeAuditWriter
}

func newGreetingFixture(employees ...models.Employee) *greetingFixture {
	f := &greetingFixture{
		logs:      &fakeGreetingLogs{},
		templates: &fakeGreetingTemplates{},
		cards:     &fakeCardStore{},
		queue:     &fakeQueue{},
		sender:    &fakeSender{},
		audit:     &fakeAuditWriter{},
	}
	settings := &fakeSettings{settings: models.MailingSettings{SendTime: "09:00", SMTPHost: "smtp.local", SMTPPort: 587, FromEmail: "hr@example.com", RetryAttempts: 3}}
	f.svc = NewGreetingService(newFakeEmployeeRepo(employees...), f.logs, f.templates, f.cards, settings, f.sender, nil,
		birthday.FixedClock(birthdayToday), nil, f.audit, GreetingConfig{RenderWorkers: 2, SMTPTLSMode: mailer.TLSImplicit}, zap.NewNop())
	f.svc.SetQueue(f.queue)
	return f
}

func greetingEmployees() []models.Employee {
	optedOut := sampleEmployee("b", birthday.MustDate(1985, time.March, 10))
	optedOut.ReceiveEmail = false
	noEmail := sampleEmployee("e", birthday.MustDate(1970, time.March, 10))
	noEmail.Email = ""
	return []models.Employee{
		sampleEmployee("a", birthday.MustDate(1990, time.March, 10)),
		optedOut,
		sampleEmployee("c", birthday.MustDate(1995, time.March, 10)),
		sampleEmployee("d", birthday.MustDate(1990, time.March, 11)),
		noEmail,
	}
}

func TestGreetingServiceRunQueuesTodaysBirthdays(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)
	f.logs.logs = append(f.logs.logs, models.GreetingLog{EmployeeID: "c", Success: true, GreetingDate: birthday.MustDate(2024, time.March, 10).Time()})

	result, err := f.svc.Run(context.Background(), TriggerScheduler)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", result.Date)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"a"}, result.Employees)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, JobTypeGreetingDelivery, job.Type)
	assert.Equal(t, 4, job.MaxAttempts)
	delivery, ok := job.Payload.(dto.GreetingDelivery)
	require.True(t, ok)
	assert.Equal(t, "Firsta Lasta", delivery.EmployeeName)
	assert.Equal(t, "a@example.com", delivery.Email)
	assert.Equal(t, "2024-03-10", delivery.GreetingDate)
	assert.Nil(t, delivery.TemplateID)
	assert.Contains(t, f.cards.files, delivery.CardPath)
	assert.Equal(t, "default", f.templates.rendered["Firsta Lasta"])
}

func TestGreetingServiceRunUsesMatchingTemplate(t *testing.T) {
	dept := "dept-1"
	employee := sampleEmployee("a", birthday.MustDate(1990, time.March, 10))
	employee.DepartmentID = &dept
	f := newGreetingFixture(employee)
	f.templates.templates = []models.CardTemplate{
		{ID: "generic", Name: "Generic"},
		{ID: "sales", Name: "Sales", DepartmentID: &dept},
	}

	_, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 1)
	delivery := f.queue.jobs[0].Payload.(dto.GreetingDelivery)
	require.NotNil(t, delivery.TemplateID)
	assert.Equal(t, "sales", *delivery.TemplateID)
	assert.Equal(t, "Sales", f.templates.rendered["Firsta Lasta"])
}

func TestGreetingServiceRunSkipsPendingDeliveries(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)

	_, err := f.svc.Run(context.Background(), TriggerScheduler)
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, f.queue.jobs, 2)
}

func TestGreetingServiceDeliverSendsAndLogs(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)
	_, err := f.svc.Run(context.Background(), TriggerScheduler)
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 2)

	for _, job := range f.queue.jobs {
		job.Attempt = 1
		require.NoError(t, f.svc.Deliver(context.Background(), job))
	}

	require.Len(t, f.sender.sent, 2)
	msg := f.sender.sent[0]
	assert.Contains(t, msg.Subject, "Happy birthday")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "smtp.local", f.sender.settings[0].Host)
	assert.Equal(t, "hr@example.com", f.sender.settings[0].From)
	assert.Equal(t, mailer.TLSImplicit, f.sender.settings[0].TLSMode)

	require.Len(t, f.logs.logs, 2)
	for _, entry := range f.logs.logs {
		assert.True(t, entry.Success)
		assert.Equal(t, 2, entry.Attempts)
		assert.Equal(t, birthday.MustDate(2024, time.March, 10).Time(), entry.GreetingDate)
	}

	again, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Queued)
	assert.Equal(t, 2, again.Skipped)
}

func TestGreetingServiceDeliverReturnsSendErrors(t *testing.T) {
	f := newGreetingFixture(sampleEmployee("a", birthday.MustDate(1990, time.March, 10)))
	_, err := f.svc.Run(context.Background(), TriggerScheduler)
	require.NoError(t, err)

	f.sender.err = errors.New("421 try later")
	err = f.svc.Deliver(context.Background(), f.queue.jobs[0])
	require.Error(t, err)
	assert.Empty(t, f.logs.logs)
}

func TestGreetingServiceDeliveryExhaustedRecordsFailure(t *testing.T) {
	f := newGreetingFixture(sampleEmployee("a", birthday.MustDate(1990, time.March, 10)))
	_, err := f.svc.Run(context.Background(), TriggerScheduler)
	require.NoError(t, err)

	job := f.queue.jobs[0]
	job.Attempt = 4
	f.svc.DeliveryExhausted(context.Background(), job, errors.New("connection refused"))

	require.Len(t, f.logs.logs, 1)
	entry := f.logs.logs[0]
	assert.False(t, entry.Success)
	assert.Equal(t, 4, entry.Attempts)
	assert.Equal(t, "Firsta Lasta", entry.EmployeeName)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "connection refused", *entry.ErrorMessage)

	retry, err := f.svc.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Queued)
}

func TestGreetingServiceRunRecordsRenderFailures(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)
	f.templates.failFor = "Firstc Lastc"

	result, err := f.svc.Run(context.Background(), TriggerScheduler)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, f.logs.logs, 1)
	assert.Equal(t, "c", f.logs.logs[0].EmployeeID)
	assert.False(t, f.logs.logs[0].Success)
}

func TestGreetingServiceRunRejectsConcurrentRuns(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)
	f.svc.runMu.Lock()
	defer f.svc.runMu.Unlock()

	_, err := f.svc.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunInProgress))
}

func TestGreetingServiceRunRequiresQueue(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)
	f.svc.SetQueue(nil)

	_, err := f.svc.Run(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestGreetingServiceRunManualAudits(t *testing.T) {
	f := newGreetingFixture(greetingEmployees()...)

	result, err := f.svc.RunManual(context.Background(), models.AuthContext{UserID: "hr-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionGreetingRun, f.audit.logs[0].Action)
	assert.Equal(t, "hr-1", *f.audit.logs[0].UserID)
}

func TestGreetingServiceHistorySignsCards(t *testing.T) {
	f := newGreetingFixture()
	f.logs.logs = []models.GreetingLog{{ID: "l1", ImagePath: "2024-03-10/a.pdf"}, {ID: "l2"}}

	logs, pagination, err := f.svc.History(context.Background(), models.GreetingLogFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "/files/cards/2024-03-10/a.pdf", logs[0].ImageURL)
	assert.Empty(t, logs[1].ImageURL)
	assert.Equal(t, 2, pagination.TotalCount)
}
