package pass

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/slot"
	"go.uber.org/zap"
)

func (fx *fixture) drawPass(name string, vertices uint32) Pass {
	return NewPass(name, fx.table.Names(),
		WithBinding(slot.Effect, "Fx"),
		WithDraw(resource.PrimitiveParams{VertexCount: vertices}),
	)
}

func draws(ops []string) []string {
	var out []string
	for _, op := range ops {
		if strings.HasPrefix(op, "DrawPrimitive") {
			out = append(out, op)
		}
	}
	return out
}

func stageNames(t *StageTable) []string {
	var out []string
	for _, s := range t.Stages() {
		out = append(out, s.Name())
	}
	return out
}

func TestStageFlushesPassesInOrder(t *testing.T) {
	fx := newFixture(t)
	s := NewStage("Lighting", WithPasses(fx.drawPass("A", 1), fx.drawPass("B", 2), fx.drawPass("C", 3)))

	if err := s.Flush(fx.rec, fx.table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"DrawPrimitive(v=1 i=0 n=1)", "DrawPrimitive(v=2 i=0 n=1)", "DrawPrimitive(v=3 i=0 n=1)"}
	if got := draws(fx.rec.Ops()); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if st := s.Stats(); st.Passes != 3 || st.Failed != 0 || st.Stages != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestStageContinuesPastFailedPass(t *testing.T) {
	fx := newFixture(t)
	broken := NewPass("Broken", fx.table.Names())
	s := NewStage("Main", WithStageLogger(zap.NewNop()), WithPasses(fx.drawPass("A", 1), broken, fx.drawPass("C", 3)))

	err := s.Flush(fx.rec, fx.table)
	if !errors.Is(err, ErrNoEffect) {
		t.Fatalf("expected ErrNoEffect, got %v", err)
	}
	if got := draws(fx.rec.Ops()); len(got) != 2 {
		t.Errorf("expected both healthy passes to draw, got %v", got)
	}
	if st := s.Stats(); st.Passes != 3 || st.Failed != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestStagePasses(t *testing.T) {
	fx := newFixture(t)
	s := NewStage("Main")
	if err := s.AddPass(fx.drawPass("A", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddPass(fx.drawPass("A", 2)); !errors.Is(err, ErrDuplicatePass) {
		t.Errorf("expected ErrDuplicatePass, got %v", err)
	}
	if s.Pass("A") == nil || s.Pass("B") != nil {
		t.Error("pass lookup is wrong")
	}
	if !s.RemovePass("A") || s.RemovePass("A") {
		t.Error("RemovePass should report existence")
	}
	if len(s.Passes()) != 0 {
		t.Errorf("expected no passes, got %d", len(s.Passes()))
	}
}

func TestStageTableOrder(t *testing.T) {
	fx := newFixture(t)
	table := NewStageTable()
	for i, name := range []string{"Shadow", "Opaque", "Post"} {
		if err := table.AddStage(NewStage(name, WithPasses(fx.drawPass(name, uint32(i+1))))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := table.AddStage(NewStage("Opaque")); !errors.Is(err, ErrDuplicateStage) {
		t.Errorf("expected ErrDuplicateStage, got %v", err)
	}

	if err := table.FlushStages(fx.rec, fx.table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"DrawPrimitive(v=1 i=0 n=1)", "DrawPrimitive(v=2 i=0 n=1)", "DrawPrimitive(v=3 i=0 n=1)"}
	if got := draws(fx.rec.Ops()); !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	tests := []struct {
		name  string
		stage string
		index int
		want  []string
	}{
		{"to front", "Post", 0, []string{"Post", "Shadow", "Opaque"}},
		{"past end", "Post", 10, []string{"Shadow", "Opaque", "Post"}},
		{"negative", "Opaque", -1, []string{"Opaque", "Shadow", "Post"}},
		{"middle", "Opaque", 1, []string{"Shadow", "Opaque", "Post"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := table.MoveStage(tt.stage, tt.index); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := stageNames(table); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if err := table.MoveStage("Missing", 0); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
	if err := table.RemoveStage("Shadow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := table.RemoveStage("Shadow"); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
	if table.Len() != 2 || table.Stage("Shadow") != nil {
		t.Error("stage was not removed")
	}
}

func TestStageTableSkipsDisabledStages(t *testing.T) {
	fx := newFixture(t)
	table := NewStageTable()
	_ = table.AddStage(NewStage("Shadow", WithPasses(fx.drawPass("S", 1))))
	_ = table.AddStage(NewStage("Debug", WithStageLogger(zap.NewNop()), WithPasses(NewPass("Broken", fx.table.Names()))))
	_ = table.AddStage(NewStage("Opaque", WithPasses(fx.drawPass("O", 2), fx.drawPass("O2", 3))))

	err := table.FlushStages(fx.rec, fx.table)
	if !errors.Is(err, ErrNoEffect) {
		t.Fatalf("expected the broken stage to report, got %v", err)
	}
	if st := table.Stats(); st.Stages != 3 || st.Passes != 4 || st.Failed != 1 || st.Skipped != 0 {
		t.Errorf("unexpected stats %+v", st)
	}

	table.Stage("Debug").SetEnabled(false)
	fx.rec.Reset()
	if err := table.FlushStages(fx.rec, fx.table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := draws(fx.rec.Ops()); len(got) != 3 {
		t.Errorf("expected 3 draws, got %v", got)
	}
	if st := table.Stats(); st.Stages != 2 || st.Skipped != 1 || st.Failed != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}
