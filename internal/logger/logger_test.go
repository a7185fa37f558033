package logger_test

import (
	"testing"

	"github.com/hql-lang/hqlc/internal/logger"
)

func TestLocationForLoc(t *testing.T) {
	source := &logger.Source{PrettyPath: "in.hql", Contents: "(fn add (x y)\n  (+ x y))"}

	loc := source.LocationForLoc(logger.Loc{Start: 14})
	if loc.Line != 2 {
		t.Fatalf("expected line 2, got %d", loc.Line)
	}
	if loc.Column != 0 {
		t.Fatalf("expected column 0, got %d", loc.Column)
	}
}

func TestDeferLogSortsByLocation(t *testing.T) {
	log := logger.NewDeferLog()
	source := &logger.Source{PrettyPath: "in.hql", Contents: "(a)\n(b)\n(c)"}

	log.AddMsg(logger.Msg{Kind: logger.Error, Phase: logger.PhaseLower, Data: logger.RangeData(source, logger.Range{Loc: logger.Loc{Start: 8}}, "third")})
	log.AddMsg(logger.Msg{Kind: logger.Error, Phase: logger.PhaseLower, Data: logger.RangeData(source, logger.Range{Loc: logger.Loc{Start: 0}}, "first")})

	msgs := log.Done()
	if len(msgs) != 2 || msgs[0].Data.Text != "first" || msgs[1].Data.Text != "third" {
		t.Fatalf("expected messages sorted by location, got %+v", msgs)
	}
	if !log.HasErrors() {
		t.Fatalf("expected HasErrors to be true")
	}
}
