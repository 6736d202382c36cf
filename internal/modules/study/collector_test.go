package study

import (
	"testing"
	"time"

	types "github.com/aprovia/aprovia-backend/internal/domain"
	apperrors "github.com/aprovia/aprovia-backend/internal/pkg/errors"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestWeightIndexSubjectBeforeModule(t *testing.T) {
	idx := newWeightIndex([]*types.ExamStructure{
		{LevelName: "Conhecimentos Básicos", LevelType: types.LevelTypeModule, NumberOfQuestions: intp(20), WeightPerQuestion: floatp(1.0)},
		{LevelName: "Língua Portuguesa", LevelType: types.LevelTypeSubject, NumberOfQuestions: intp(10), WeightPerQuestion: floatp(1.5)},
	})

	// Subject entry wins over the enclosing module.
	if w := idx.lookup("Língua Portuguesa", "Conhecimentos Básicos"); w != 15.0 {
		t.Fatalf("subject weight = %v, want 15.0", w)
	}
	// No subject entry: fall back to the module.
	if w := idx.lookup("Raciocínio Lógico", "Conhecimentos Básicos"); w != 20.0 {
		t.Fatalf("module weight = %v, want 20.0", w)
	}
	// No entry at all: default.
	if w := idx.lookup("Direito Administrativo", "Conhecimentos Específicos"); w != 1.0 {
		t.Fatalf("default weight = %v, want 1.0", w)
	}
}

func TestWeightIndexSkipsRowsWithoutPositiveImpact(t *testing.T) {
	idx := newWeightIndex([]*types.ExamStructure{
		{LevelName: "Informática", LevelType: types.LevelTypeSubject, NumberOfQuestions: intp(5)},
		{LevelName: "Atualidades", LevelType: types.LevelTypeSubject, NumberOfQuestions: intp(0), WeightPerQuestion: floatp(2.0)},
		{LevelName: "Legislação", LevelType: types.LevelTypeSubject, WeightPerQuestion: floatp(3.0)},
	})

	// A row missing either factor, or whose product is zero, carries no
	// weight information and its subject takes the default.
	if w := idx.lookup("Informática", ""); w != 1.0 {
		t.Fatalf("weight with nil per-question = %v, want 1.0", w)
	}
	if w := idx.lookup("Atualidades", ""); w != 1.0 {
		t.Fatalf("weight with zero questions = %v, want 1.0", w)
	}
	if w := idx.lookup("Legislação", ""); w != 1.0 {
		t.Fatalf("weight with nil questions = %v, want 1.0", w)
	}
}

func TestSessionBudget(t *testing.T) {
	c := &Collector{sessionsPerDay: 2}

	in10 := time.Now().AddDate(0, 0, 10)
	total, err := c.sessionBudget(&in10)
	if err != nil {
		t.Fatalf("sessionBudget: %v", err)
	}
	if total < 18 || total > 20 {
		t.Fatalf("budget = %d, want about 20 for an exam in 10 days", total)
	}
}

func TestSessionBudgetPreconditions(t *testing.T) {
	c := &Collector{sessionsPerDay: 2}

	if _, err := c.sessionBudget(nil); !apperrors.IsPrecondition(err) {
		t.Fatalf("nil exam date: expected a precondition error, got %v", err)
	}

	past := time.Now().AddDate(0, 0, -1)
	if _, err := c.sessionBudget(&past); !apperrors.IsPrecondition(err) {
		t.Fatalf("past exam date: expected a precondition error, got %v", err)
	}
}
