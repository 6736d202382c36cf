package study

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aprovia/aprovia-backend/internal/data/repos/testutil"
	types "github.com/aprovia/aprovia-backend/internal/domain"
	"github.com/aprovia/aprovia-backend/internal/pkg/dbctx"
)

type seeded struct {
	userContest *types.UserContest
	topics      []*types.ProgrammaticContent
}

func seedUserContest(t *testing.T, tx *gorm.DB, topicNames ...string) seeded {
	t.Helper()
	user := &types.User{Email: uuid.NewString() + "@example.com"}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	contest := &types.Contest{
		OwnerUserID: user.ID,
		Name:        "Concurso INSS",
		FileURL:     "editais/inss.pdf",
		Status:      types.ContestStatusCompleted,
	}
	if err := tx.Create(contest).Error; err != nil {
		t.Fatalf("create contest: %v", err)
	}
	role := &types.ContestRole{ContestID: contest.ID, JobTitle: "Técnico do Seguro Social"}
	if err := tx.Create(role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}

	out := seeded{}
	for _, name := range topicNames {
		topic := &types.ProgrammaticContent{
			ContestRoleID: role.ID,
			ExamModule:    "Conhecimentos Básicos",
			Subject:       "Língua Portuguesa",
			Topic:         name,
		}
		if err := tx.Create(topic).Error; err != nil {
			t.Fatalf("create topic: %v", err)
		}
		out.topics = append(out.topics, topic)
	}

	examDate := time.Now().AddDate(0, 2, 0)
	uc := &types.UserContest{
		UserID:        user.ID,
		ContestID:     contest.ID,
		ContestRoleID: role.ID,
		ExamDate:      &examDate,
	}
	if err := tx.Create(uc).Error; err != nil {
		t.Fatalf("create user contest: %v", err)
	}
	out.userContest = uc
	return out
}

func planOf(topicIDs ...uuid.UUID) []PlanSession {
	sessions := make([]PlanSession, 0, len(topicIDs))
	for i, id := range topicIDs {
		sessions = append(sessions, PlanSession{
			SessionNumber:  i + 1,
			Summary:        "Sessão de foco",
			PriorityLevel:  "Alta Prioridade",
			PriorityReason: "baixa proficiência",
			TopicIDs:       []uuid.UUID{id},
		})
	}
	return sessions
}

func TestReplacePlanReplacesPreviousSessions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewRoadmapRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	s := seedUserContest(t, tx, "Crase", "Regência", "Pontuação")

	if err := repo.ReplacePlan(dbc, s.userContest.ID, planOf(s.topics[0].ID, s.topics[1].ID, s.topics[2].ID)); err != nil {
		t.Fatalf("first ReplacePlan: %v", err)
	}
	if err := repo.ReplacePlan(dbc, s.userContest.ID, planOf(s.topics[2].ID)); err != nil {
		t.Fatalf("second ReplacePlan: %v", err)
	}

	sessions, err := repo.ListByUserContest(dbc, s.userContest.ID)
	if err != nil {
		t.Fatalf("ListByUserContest: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1 after replace", len(sessions))
	}
	if len(sessions[0].Topics) != 1 || sessions[0].Topics[0].ProgrammaticContentID != s.topics[2].ID {
		t.Fatalf("session topics = %+v, want only the last replace's topic", sessions[0].Topics)
	}
}

func TestReplacePlanKeepsTopicOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewRoadmapRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	s := seedUserContest(t, tx, "Juros Simples", "Juros Compostos")

	grouped := []PlanSession{{
		SessionNumber:  1,
		Summary:        "Sessão agrupada",
		PriorityLevel:  "Baixa Prioridade",
		PriorityReason: "tópicos correlatos",
		TopicIDs:       []uuid.UUID{s.topics[1].ID, s.topics[0].ID},
	}}
	if err := repo.ReplacePlan(dbc, s.userContest.ID, grouped); err != nil {
		t.Fatalf("ReplacePlan: %v", err)
	}

	sessions, err := repo.ListByUserContest(dbc, s.userContest.ID)
	if err != nil {
		t.Fatalf("ListByUserContest: %v", err)
	}
	got := sessions[0].Topics
	if len(got) != 2 {
		t.Fatalf("topics = %d, want 2", len(got))
	}
	if got[0].ProgrammaticContentID != s.topics[1].ID || got[1].ProgrammaticContentID != s.topics[0].ID {
		t.Fatal("topic order within a grouped session was not preserved")
	}
}

func TestMapByUserContest(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewTopicProgressRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	s := seedUserContest(t, tx, "Crase", "Regência")
	progress := &types.UserTopicProgress{
		UserContestID:         s.userContest.ID,
		ProgrammaticContentID: s.topics[0].ID,
		Proficiency:           0.75,
	}
	if err := tx.Create(progress).Error; err != nil {
		t.Fatalf("create progress: %v", err)
	}

	m, err := repo.MapByUserContest(dbc, s.userContest.ID)
	if err != nil {
		t.Fatalf("MapByUserContest: %v", err)
	}
	if m[s.topics[0].ID] != 0.75 {
		t.Fatalf("proficiency = %v, want 0.75", m[s.topics[0].ID])
	}
	if _, ok := m[s.topics[1].ID]; ok {
		t.Fatal("untouched topic should be absent from the map")
	}
}
