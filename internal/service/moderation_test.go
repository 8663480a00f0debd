package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promohub/internal/apperror"
	"promohub/internal/models"
)

func TestReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.moderation.Report(ctx, ReportInput{
		ReporterEmail: "a@b.co",
		TargetType:    "Project",
		TargetID:      "p1",
		Reason:        "spam",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportOpen, r.Status)
	assert.Equal(t, "project", r.TargetType)

	reports, err := f.moderation.Reports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, r.ID, reports[0].ID)
}

func TestReportValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		in    ReportInput
		field string
	}{
		{"bad reporter", ReportInput{ReporterEmail: "x", TargetType: "post", TargetID: "1", Reason: "r"}, "reporterEmail"},
		{"bad target type", ReportInput{ReporterEmail: "a@b.co", TargetType: "planet", TargetID: "1", Reason: "r"}, "targetType"},
		{"no target", ReportInput{ReporterEmail: "a@b.co", TargetType: "post", Reason: "r"}, "targetId"},
		{"no reason", ReportInput{ReporterEmail: "a@b.co", TargetType: "post", TargetID: "1"}, "reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.moderation.Report(context.Background(), tt.in)
			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestMessageAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "known@example.com", "Known")

	dm, err := f.moderation.MessageAdmins(ctx, AdminDMInput{FromEmail: "known@example.com", Text: "please review my ban"})
	require.NoError(t, err)
	assert.Equal(t, "Known", dm.FromName)

	dm, err = f.moderation.MessageAdmins(ctx, AdminDMInput{FromEmail: "stranger@example.com", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "stranger@example.com", dm.FromName)

	dms, err := f.moderation.AdminDMs(ctx)
	require.NoError(t, err)
	assert.Len(t, dms, 2)
}
