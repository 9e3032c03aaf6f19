package repositories

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/database"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/stats"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

type RunRepositoryTestSuite struct {
	suite.Suite
	driver  string
	dsn     string
	factory *database.DatabaseFactory
	repo    *RunRepository
	ctx     context.Context
}

func (s *RunRepositoryTestSuite) SetupTest() {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.ctx = context.Background()

	factory, err := database.NewDatabaseFactory(s.driver, s.dsn, logger)
	s.Require().NoError(err)
	s.Require().NoError(factory.Initialize(s.ctx))
	s.factory = factory

	s.repo = NewRunRepository(factory.GetManager(), factory.GetTransactionManager(), logger)
}

func (s *RunRepositoryTestSuite) TearDownTest() {
	s.factory.Close()
}

func TestRunRepository_DuckDB(t *testing.T) {
	suite.Run(t, &RunRepositoryTestSuite{driver: database.DriverDuckDB})
}

func TestRunRepository_SQLite(t *testing.T) {
	suite.Run(t, &RunRepositoryTestSuite{driver: database.DriverSQLite, dsn: ":memory:"})
}

// fixture holds a run where node 2 sends seqn 1..5 and 3, 4 arrive twice,
// node 3 sends only on the window boundaries and node 4 never gets a
// transmission scheduled.
func fixture() *database.RunTables {
	t := &database.RunTables{}
	for seqn := 1; seqn <= 5; seqn++ {
		t.Sent = append(t.Sent, types.SentRecord{TimeSent: "1.0", Dest: 1, Src: 2, Seqn: seqn, Status: 1})
	}
	t.Sent = append(t.Sent,
		types.SentRecord{TimeSent: "1.1", Dest: 1, Src: 2, Seqn: 3, Status: 1}, // duplicate
		types.SentRecord{TimeSent: "1.2", Dest: 1, Src: 3, Seqn: 1, Status: 1},
		types.SentRecord{TimeSent: "1.3", Dest: 1, Src: 3, Seqn: 5, Status: 1},
		types.SentRecord{TimeSent: "1.4", Dest: 1, Src: 4, Seqn: 2, Status: 0},
	)
	for _, seqn := range []int{2, 3, 3, 4} {
		t.Recv = append(t.Recv, types.RecvRecord{TimeRecv: "2.0", Dest: 1, Src: 2, Seqn: seqn, Hops: 1})
	}
	t.Energy = []types.EnergySample{
		{Time: "3.0", Node: 2, Cnt: 1, CPU: 1, LPM: 1, TX: 9, RX: 9},
		{Time: "3.0", Node: 2, Cnt: 2, CPU: 100, LPM: 900, TX: 10, RX: 40},
		{Time: "3.0", Node: 3, Cnt: 2, CPU: 0, LPM: 0, TX: 0, RX: 0},
	}

	pdr := stats.ComputePDR(t.Sent, t.Recv)
	t.PDR = pdr.Nodes
	t.DutyCycle = stats.ComputeDutyCycle(t.Energy).Nodes
	return t
}

func (s *RunRepositoryTestSuite) saveFixture() (*database.RunEntity, *database.RunTables) {
	tables := fixture()
	run := &database.RunEntity{
		ID:         uuid.NewString(),
		LogFile:    "exp.log",
		Mode:       types.ModeSimulation.String(),
		Lines:      42,
		Skipped:    1,
		OverallPDR: nullable(100),
		MeanDC:     nullable(math.NaN()),
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.repo.SaveRun(s.ctx, run, tables))
	return run, tables
}

func (s *RunRepositoryTestSuite) TestSaveAndGetRun() {
	run, _ := s.saveFixture()

	got, err := s.repo.GetRun(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(run.ID, got.ID)
	s.Equal("exp.log", got.LogFile)
	s.Equal(int64(42), got.Lines)
	s.Equal(int64(1), got.Skipped)
	s.True(got.OverallPDR.Valid)
	s.InDelta(100.0, got.OverallPDR.Float64, 1e-9)
	s.False(got.MeanDC.Valid)
	s.True(run.CreatedAt.Equal(got.CreatedAt))
}

func (s *RunRepositoryTestSuite) TestGetRun_NotFound() {
	_, err := s.repo.GetRun(s.ctx, "missing")
	s.ErrorIs(err, ErrRunNotFound)
}

func (s *RunRepositoryTestSuite) TestListRuns() {
	first, _ := s.saveFixture()
	second, _ := s.saveFixture()

	runs, err := s.repo.ListRuns(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)

	ids := []string{runs[0].ID, runs[1].ID}
	s.ElementsMatch([]string{first.ID, second.ID}, ids)
}

func (s *RunRepositoryTestSuite) TestStoredPDR_KeepsNaN() {
	run, tables := s.saveFixture()

	stored, err := s.repo.StoredPDR(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, len(tables.PDR))
	for i := range stored {
		s.Equal(tables.PDR[i].Node, stored[i].Node)
		s.Equal(tables.PDR[i].Sent, stored[i].Sent)
		if math.IsNaN(tables.PDR[i].PDR) {
			s.True(math.IsNaN(stored[i].PDR))
		} else {
			s.InDelta(tables.PDR[i].PDR, stored[i].PDR, 1e-9)
		}
	}
}

func (s *RunRepositoryTestSuite) TestArchivedPDR_MatchesComputePDR() {
	run, tables := s.saveFixture()

	archived, err := s.repo.ArchivedPDR(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Require().Len(archived, 3)

	for i, want := range tables.PDR {
		got := archived[i]
		s.Equal(want.Node, got.Node)
		s.Equal(want.SentTrials, got.SentTrials)
		s.Equal(want.Sent, got.Sent)
		s.Equal(want.Recv, got.Recv)
	}

	// node 2: seqn 2..4 counted, all delivered
	s.Equal(types.NodeID(2), archived[0].Node)
	s.Equal(3, archived[0].Recv)
	s.InDelta(100.0, archived[0].PDR, 1e-9)

	// nodes 3 and 4 have nothing transmitted inside the window
	s.True(math.IsNaN(archived[1].PDR))
	s.True(math.IsNaN(archived[2].PDR))
}

func (s *RunRepositoryTestSuite) TestArchivedPDR_IsolatesRuns() {
	first, _ := s.saveFixture()
	s.saveFixture()

	archived, err := s.repo.ArchivedPDR(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(3, archived[0].SentTrials)
}

func (s *RunRepositoryTestSuite) TestArchivedDutyCycle() {
	run, tables := s.saveFixture()

	archived, err := s.repo.ArchivedDutyCycle(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Require().Len(archived, len(tables.DutyCycle))

	s.Equal(types.NodeID(2), archived[0].Node)
	s.Equal(uint64(1000), archived[0].TotalTime)
	s.Equal(uint64(50), archived[0].RadioTime)
	s.InDelta(5.0, archived[0].DC, 1e-9)
	s.True(math.IsNaN(archived[1].DC))
}

func (s *RunRepositoryTestSuite) TestSaveRun_DuplicateIDFails() {
	run, _ := s.saveFixture()
	err := s.repo.SaveRun(s.ctx, run, nil)
	s.Error(err)

	// the failed transaction must not leave partial rows behind
	runs, err := s.repo.ListRuns(s.ctx)
	s.Require().NoError(err)
	s.Len(runs, 1)
}
