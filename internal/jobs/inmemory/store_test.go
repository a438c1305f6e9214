package inmemory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/sales-ledger/internal/jobs"
)

func TestStoreSaveRequiresID(t *testing.T) {
	store := NewStore()
	err := store.SaveJob(context.Background(), &jobs.ImportSalesJob{SourceName: "jan.csv"})
	if err == nil {
		t.Fatal("SaveJob without ID should fail")
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	job := &jobs.ImportSalesJob{JobID: "job-1", SourceName: "jan.csv", Status: jobs.JobStatusPending}
	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	got, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	got.Status = jobs.JobStatusFailed

	again, _ := store.GetJob(context.Background(), "job-1")
	if again.Status != jobs.JobStatusPending {
		t.Errorf("mutating a returned job leaked into the store: %q", again.Status)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore()
	_, err := store.GetJob(context.Background(), "nope")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("GetJob error = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdateStatus(t *testing.T) {
	store := NewStore()
	job := &jobs.ImportSalesJob{JobID: "job-1", Status: jobs.JobStatusPending}
	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	if err := store.UpdateJobStatus(context.Background(), "job-1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	got, _ := store.GetJob(context.Background(), "job-1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("job after update = %+v", got)
	}

	if err := store.UpdateJobStatus(context.Background(), "nope", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("UpdateJobStatus on missing job = %v, want ErrNotFound", err)
	}
}

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		job := &jobs.ImportSalesJob{
			JobID:      fmt.Sprintf("job-%d", i),
			SourceName: fmt.Sprintf("report-%d.csv", i),
			Status:     jobs.JobStatusCompleted,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			job.Status = jobs.JobStatusFailed
		}
		if err := store.SaveJob(context.Background(), job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		all, err := store.ListJobs(context.Background(), jobs.JobFilter{})
		if err != nil {
			t.Fatalf("ListJobs: %v", err)
		}
		if len(all) != 5 {
			t.Fatalf("got %d jobs, want 5", len(all))
		}
		if all[0].JobID != "job-4" || all[4].JobID != "job-0" {
			t.Errorf("order = [%s ... %s], want job-4 first and job-0 last", all[0].JobID, all[4].JobID)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		failed, err := store.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusFailed})
		if err != nil {
			t.Fatalf("ListJobs: %v", err)
		}
		if len(failed) != 1 || failed[0].JobID != "job-2" {
			t.Errorf("failed jobs = %+v, want only job-2", failed)
		}
	})

	t.Run("source name filter", func(t *testing.T) {
		byName, err := store.ListJobs(context.Background(), jobs.JobFilter{SourceName: "report-3.csv"})
		if err != nil {
			t.Fatalf("ListJobs: %v", err)
		}
		if len(byName) != 1 || byName[0].JobID != "job-3" {
			t.Errorf("jobs for report-3.csv = %+v, want only job-3", byName)
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		page, err := store.ListJobs(context.Background(), jobs.JobFilter{Limit: 2, Offset: 1})
		if err != nil {
			t.Fatalf("ListJobs: %v", err)
		}
		if len(page) != 2 {
			t.Fatalf("got %d jobs, want 2", len(page))
		}
		if page[0].JobID != "job-3" || page[1].JobID != "job-2" {
			t.Errorf("page = [%s, %s], want [job-3, job-2]", page[0].JobID, page[1].JobID)
		}
	})

	t.Run("offset past end", func(t *testing.T) {
		page, err := store.ListJobs(context.Background(), jobs.JobFilter{Offset: 10})
		if err != nil {
			t.Fatalf("ListJobs: %v", err)
		}
		if len(page) != 0 {
			t.Errorf("got %d jobs, want 0", len(page))
		}
	})
}
