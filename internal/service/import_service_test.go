package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markr-hq/markr-api/internal/models"
	appErrors "github.com/markr-hq/markr-api/pkg/errors"
	"github.com/markr-hq/markr-api/pkg/jobs"
)

type statusStoreStub struct {
	sets       []models.ImportJob
	setErr     error
	getResp    *models.ImportJob
	getErr     error
	sweepCount int
	sweepErr   error
}

func (s *statusStoreStub) Set(_ context.Context, job models.ImportJob) error {
	s.sets = append(s.sets, job)
	return s.setErr
}

func (s *statusStoreStub) Get(_ context.Context, _ string) (*models.ImportJob, error) {
	return s.getResp, s.getErr
}

func (s *statusStoreStub) SweepInterrupted(_ context.Context) (int, error) {
	return s.sweepCount, s.sweepErr
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	d.jobs = append(d.jobs, job)
	return d.err
}

const validXML = `<mcq-test-results>
  <mcq-test-result>
    <student-number>521585128</student-number>
    <test-id>1234</test-id>
    <summary-marks available="20" obtained="13" />
  </mcq-test-result>
</mcq-test-results>`

func TestImportServiceSubmit(t *testing.T) {
	status := &statusStoreStub{}
	queue := &dispatcherStub{}
	svc := NewImportService(nil, queue, status, nil)

	job, err := svc.Submit(context.Background(), []byte(validXML), "text/xml+markr")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ImportStatusQueued, job.Status)

	require.Len(t, status.sets, 1)
	assert.Equal(t, models.ImportStatusQueued, status.sets[0].Status)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, job.ID, queue.jobs[0].ID)
	assert.Equal(t, "import", queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(DocumentPayload)
	require.True(t, ok)
	assert.Equal(t, "text/xml+markr", payload.ContentType)
}

func TestImportServiceSubmitUnsupportedType(t *testing.T) {
	status := &statusStoreStub{}
	queue := &dispatcherStub{}
	svc := NewImportService(nil, queue, status, nil)

	_, err := svc.Submit(context.Background(), []byte(validXML), "application/json")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnsupportedFormat.Code, appErr.Code)
	// Nothing queued, no job record written.
	assert.Empty(t, status.sets)
	assert.Empty(t, queue.jobs)
}

func TestImportServiceSubmitMalformed(t *testing.T) {
	status := &statusStoreStub{}
	queue := &dispatcherStub{}
	svc := NewImportService(nil, queue, status, nil)

	_, err := svc.Submit(context.Background(), []byte("<wrong-root/>"), "text/xml+markr")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMalformedDocument.Code, appErr.Code)
	assert.Empty(t, queue.jobs)
}

func TestImportServiceSubmitEnqueueFailure(t *testing.T) {
	status := &statusStoreStub{}
	queue := &dispatcherStub{err: errors.New("queue full")}
	svc := NewImportService(nil, queue, status, nil)

	_, err := svc.Submit(context.Background(), []byte(validXML), "text/xml+markr")
	require.Error(t, err)

	// First write is queued, second flips the job to failed.
	require.Len(t, status.sets, 2)
	assert.Equal(t, models.ImportStatusQueued, status.sets[0].Status)
	assert.Equal(t, models.ImportStatusFailed, status.sets[1].Status)
}

func TestImportServiceJobStatus(t *testing.T) {
	status := &statusStoreStub{
		getResp: &models.ImportJob{ID: "job-1", Status: models.ImportStatusProcessing},
	}
	svc := NewImportService(nil, &dispatcherStub{}, status, nil)

	job, err := svc.JobStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusProcessing, job.Status)
}

func TestImportServiceJobStatusMissingIsCompleted(t *testing.T) {
	status := &statusStoreStub{getErr: appErrors.ErrCacheMiss}
	svc := NewImportService(nil, &dispatcherStub{}, status, nil)

	job, err := svc.JobStatus(context.Background(), "expired-job")
	require.NoError(t, err)
	assert.Equal(t, "expired-job", job.ID)
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
}

func TestImportServiceJobStatusStoreError(t *testing.T) {
	status := &statusStoreStub{getErr: errors.New("redis down")}
	svc := NewImportService(nil, &dispatcherStub{}, status, nil)

	_, err := svc.JobStatus(context.Background(), "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
