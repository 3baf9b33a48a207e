package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taleemhub/monitoring-service/internal/models"
	"github.com/taleemhub/monitoring-service/internal/repositories"
	"github.com/taleemhub/monitoring-service/internal/validator"
)

func newQueryFixture(t *testing.T) (QueryService, *mockRepository) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := newMockRepository()

	repo.addUser(&models.User{
		ID: "head-1", FullName: "Bashir Ahmed", Phone: "0302-1", Role: models.RoleHeadTeacher,
		SchoolID: strPtr("school-1"), ClusterID: strPtr("cluster-1"), DistrictID: strPtr("district-1"),
	})
	repo.addUser(&models.User{
		ID: "aeo-1", FullName: "Amina Khan", Phone: "0302-2", Role: models.RoleAEO,
		ClusterID: strPtr("cluster-1"), DistrictID: strPtr("district-1"),
	})
	repo.addUser(&models.User{
		ID: "teacher-1", FullName: "Dania Malik", Phone: "0302-3", Role: models.RoleTeacher,
		SchoolID: strPtr("school-1"), ClusterID: strPtr("cluster-1"), DistrictID: strPtr("district-1"),
	})

	return NewQueryService(repo, nil, logger, validator.New()), repo
}

func openQuery(t *testing.T, service QueryService) *models.Query {
	t.Helper()
	query, err := service.Create(context.Background(), &CreateQueryRequest{
		Subject:  "Missing furniture grant",
		Body:     "The Q2 furniture grant has not arrived at school-1.",
		ToUserID: "aeo-1",
	}, "head-1")
	require.NoError(t, err)
	return query
}

func TestQueryService_Create(t *testing.T) {
	service, _ := newQueryFixture(t)

	query := openQuery(t, service)

	assert.NotEmpty(t, query.ID)
	assert.Equal(t, models.QueryOpen, query.Status)
	assert.Equal(t, "head-1", query.FromUserID)
	assert.Equal(t, "aeo-1", query.ToUserID)
}

func TestQueryService_Create_UnknownRecipient(t *testing.T) {
	service, _ := newQueryFixture(t)

	_, err := service.Create(context.Background(), &CreateQueryRequest{
		Subject:  "Subject",
		Body:     "Body",
		ToUserID: "no-such-user",
	}, "head-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestQueryService_ParticipantsOnly(t *testing.T) {
	service, _ := newQueryFixture(t)
	query := openQuery(t, service)

	_, err := service.GetByID(context.Background(), query.ID, "head-1")
	assert.NoError(t, err)
	_, err = service.GetByID(context.Background(), query.ID, "aeo-1")
	assert.NoError(t, err)

	_, err = service.GetByID(context.Background(), query.ID, "teacher-1")
	assert.True(t, IsPermissionError(err), "non-participants cannot read a query, got %v", err)

	_, err = service.GetByID(context.Background(), "no-such-query", "head-1")
	assert.ErrorIs(t, err, ErrQueryNotFound)
}

func TestQueryService_Respond_RecipientReplyFlipsStatus(t *testing.T) {
	service, _ := newQueryFixture(t)
	query := openQuery(t, service)

	// The opener adding detail does not answer their own query.
	updated, err := service.Respond(context.Background(), query.ID, &RespondQueryRequest{
		Body: "Adding the EMIS code: 12345.",
	}, "head-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueryOpen, updated.Status)
	assert.Len(t, updated.Responses, 1)

	updated, err = service.Respond(context.Background(), query.ID, &RespondQueryRequest{
		Body: "Grant released, expect delivery next week.",
	}, "aeo-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueryAnswered, updated.Status)
	assert.Len(t, updated.Responses, 2)
	assert.Equal(t, "Amina Khan", updated.Responses[1].UserName)
}

func TestQueryService_Respond_ClosedQueryRejected(t *testing.T) {
	service, _ := newQueryFixture(t)
	query := openQuery(t, service)

	require.NoError(t, service.CloseQuery(context.Background(), query.ID, "head-1"))

	_, err := service.Respond(context.Background(), query.ID, &RespondQueryRequest{
		Body: "Too late?",
	}, "aeo-1")
	assert.True(t, IsBusinessRuleError(err), "got %v", err)
}

func TestQueryService_Close_OpenerOnly(t *testing.T) {
	service, _ := newQueryFixture(t)
	query := openQuery(t, service)

	err := service.CloseQuery(context.Background(), query.ID, "aeo-1")
	assert.True(t, IsPermissionError(err), "the recipient cannot close, got %v", err)

	require.NoError(t, service.CloseQuery(context.Background(), query.ID, "head-1"))

	got, err := service.GetByID(context.Background(), query.ID, "head-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueryClosed, got.Status)
}

func TestQueryService_Delete_OpenerOnly(t *testing.T) {
	service, _ := newQueryFixture(t)
	query := openQuery(t, service)

	err := service.Delete(context.Background(), query.ID, "aeo-1")
	assert.True(t, IsPermissionError(err))

	require.NoError(t, service.Delete(context.Background(), query.ID, "head-1"))

	_, err = service.GetByID(context.Background(), query.ID, "head-1")
	assert.ErrorIs(t, err, ErrQueryNotFound)
}

func TestQueryService_ListForUser(t *testing.T) {
	service, _ := newQueryFixture(t)
	first := openQuery(t, service)
	openQuery(t, service)

	_, err := service.Respond(context.Background(), first.ID, &RespondQueryRequest{
		Body: "Answered.",
	}, "aeo-1")
	require.NoError(t, err)

	for _, userID := range []string{"head-1", "aeo-1"} {
		list, err := service.ListForUser(context.Background(), userID, repositories.QueryFilters{})
		require.NoError(t, err)
		assert.Len(t, list.Queries, 2, "user %s", userID)
	}

	open := models.QueryOpen
	list, err := service.ListForUser(context.Background(), "head-1", repositories.QueryFilters{Status: &open})
	require.NoError(t, err)
	require.Len(t, list.Queries, 1)
	assert.NotEqual(t, first.ID, list.Queries[0].ID)

	list, err = service.ListForUser(context.Background(), "teacher-1", repositories.QueryFilters{})
	require.NoError(t, err)
	assert.Empty(t, list.Queries)
}
