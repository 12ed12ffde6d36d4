package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/YouXam/ucloud-bot/internal/database"
	"github.com/YouXam/ucloud-bot/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// SubmissionRepositoryTestSuite exercises the repository against sqlite
type SubmissionRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo SubmissionRepository
	ctx  context.Context
}

func (suite *SubmissionRepositoryTestSuite) SetupTest() {
	suite.db = openTestDB(suite.T())
	suite.repo = NewSubmissionRepository(suite.db)
	suite.ctx = context.Background()
}

func (suite *SubmissionRepositoryTestSuite) newSession(username string) *models.Submission {
	return &models.Submission{
		Username:     username,
		SessionKey:   "key-" + username,
		AssignmentID: "42",
		Active:       true,
		MessageID:    10,
		ChannelID:    1001,
		ReplyTo:      9,
		Detail:       models.AssignmentSnapshot{Title: "Lab 1"},
		ReplyMarkup:  models.Keyboard{{models.DataButton("Submit", "s42")}},
	}
}

func (suite *SubmissionRepositoryTestSuite) TestStart_CreatesSession() {
	s := suite.newSession("alice")
	suite.Require().NoError(suite.repo.Start(suite.ctx, s))
	suite.Equal(int64(1), s.Version)

	loaded, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.True(loaded.Active)
	suite.Equal("Lab 1", loaded.Detail.Title)
	suite.Equal(models.Keyboard{{models.DataButton("Submit", "s42")}}, loaded.ReplyMarkup)
	suite.Empty(loaded.Attachments)
}

func (suite *SubmissionRepositoryTestSuite) TestStart_RejectsWhileActive() {
	suite.Require().NoError(suite.repo.Start(suite.ctx, suite.newSession("alice")))

	err := suite.repo.Start(suite.ctx, suite.newSession("alice"))
	suite.ErrorIs(err, ErrSubmissionActive)
}

func (suite *SubmissionRepositoryTestSuite) TestStart_ReplacesFinishedSession() {
	first := suite.newSession("alice")
	suite.Require().NoError(suite.repo.Start(suite.ctx, first))
	first.Active = false
	suite.Require().NoError(suite.repo.Update(suite.ctx, first))

	second := suite.newSession("alice")
	second.AssignmentID = "43"
	suite.Require().NoError(suite.repo.Start(suite.ctx, second))

	var count int64
	suite.db.Model(&models.Submission{}).Where("username = ?", "alice").Count(&count)
	suite.Equal(int64(1), count)

	loaded, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Equal("43", loaded.AssignmentID)
	suite.True(loaded.Active)
}

func (suite *SubmissionRepositoryTestSuite) TestUpdate_DetectsStaleVersion() {
	suite.Require().NoError(suite.repo.Start(suite.ctx, suite.newSession("alice")))

	a, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.Require().NoError(err)
	b, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.Require().NoError(err)

	a.AppendContent("from a")
	suite.Require().NoError(suite.repo.Update(suite.ctx, a))
	suite.Equal(int64(2), a.Version)

	b.AppendContent("from b")
	suite.ErrorIs(suite.repo.Update(suite.ctx, b), ErrVersionConflict)

	loaded, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Equal("from a", loaded.Content)
}

func (suite *SubmissionRepositoryTestSuite) TestUpdate_PersistsAttachments() {
	s := suite.newSession("alice")
	suite.Require().NoError(suite.repo.Start(suite.ctx, s))

	s.Attachments = models.Attachments{{Filename: "a.pdf", FileID: "f1", Uploading: true}}
	suite.Require().NoError(suite.repo.Update(suite.ctx, s))

	loaded, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Require().Len(loaded.Attachments, 1)
	suite.True(loaded.Attachments[0].Uploading)
}

func (suite *SubmissionRepositoryTestSuite) TestDelete() {
	suite.Require().NoError(suite.repo.Start(suite.ctx, suite.newSession("alice")))
	suite.Require().NoError(suite.repo.Delete(suite.ctx, "alice"))

	_, err := suite.repo.FindByUsername(suite.ctx, "alice")
	suite.True(errors.Is(err, gorm.ErrRecordNotFound))
}

func TestSubmissionRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(SubmissionRepositoryTestSuite))
}

func TestUpdate_ConditionalWriteOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "submissions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	s := &models.Submission{Username: "alice", Version: 3}
	err = repo.Update(context.Background(), s)

	require.ErrorIs(t, err, ErrVersionConflict)
	require.Equal(t, int64(3), s.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_BumpsVersionOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	repo := NewSubmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "submissions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := &models.Submission{Username: "alice", Version: 3}
	require.NoError(t, repo.Update(context.Background(), s))
	require.Equal(t, int64(4), s.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}
