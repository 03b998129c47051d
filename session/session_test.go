package session

import (
	"testing"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/state"
)

func TestNewSession(t *testing.T) {
	s := NewSession(board.Yellow, "cy", 15)
	if s.ID == "" {
		t.Fatal("NewSession should assign an ID")
	}
	for _, c := range board.Colors {
		p := s.Players[c]
		if p == nil {
			t.Fatalf("player %s missing", c)
		}
		low, high := c.PieceRange()
		if p.Low != low || p.High != high {
			t.Errorf("player %s range = %d-%d, want %d-%d", c, p.Low, p.High, low, high)
		}
		if p.Mine != (c == board.Yellow) {
			t.Errorf("player %s mine = %v", c, p.Mine)
		}
	}
	if s.Players[board.Yellow].Name != "cy" {
		t.Errorf("own name not set")
	}
	if s.Timer.Remaining != 15 {
		t.Errorf("timer should start full, got %d", s.Timer.Remaining)
	}
}

func TestTimerState_NeverNegative(t *testing.T) {
	ts := TimerState{Limit: 15, Remaining: 15}
	ts.Set(-3)
	if ts.Remaining != 0 {
		t.Fatalf("Remaining = %d, want 0", ts.Remaining)
	}
	ts.Set(40)
	if ts.Remaining != 15 {
		t.Fatalf("Remaining = %d, want capped at limit", ts.Remaining)
	}
	ts.Set(4)
	ts.Reset()
	if ts.Remaining != 15 {
		t.Fatalf("Reset should restore the limit, got %d", ts.Remaining)
	}
}

func TestBeginTurn_GenerationAndFlags(t *testing.T) {
	s := NewSession(board.Red, "ann", 15)

	gen := s.BeginTurn(board.Red)
	if gen != 1 || s.Turn() != 1 {
		t.Fatalf("first turn generation = %d", gen)
	}
	if !s.IsMyTurn() || !s.Players[board.Red].Turn {
		t.Fatal("red should hold the turn")
	}
	if err := s.RecordRoll(4); err != nil {
		t.Fatalf("RecordRoll: %v", err)
	}
	if !s.Players[board.Red].DiceRolled || s.Players[board.Red].Roll != 4 {
		t.Fatal("roll not recorded on the player")
	}

	gen = s.BeginTurn(board.Green)
	if gen != 2 {
		t.Fatalf("second turn generation = %d", gen)
	}
	red := s.Players[board.Red]
	if red.Turn || red.Roll != 0 || red.DiceRolled {
		t.Fatalf("previous player not cleared: %+v", *red)
	}
	if s.IsMyTurn() {
		t.Fatal("green holds the turn, not red")
	}
}

func TestEndTurn(t *testing.T) {
	s := NewSession(board.Blue, "dee", 15)
	s.BeginTurn(board.Blue)
	s.Timer.Set(3)
	s.EndTurn()

	if _, ok := s.Current(); ok {
		t.Fatal("no one should hold the turn")
	}
	if s.Players[board.Blue].Turn {
		t.Fatal("turn flag should be cleared")
	}
	if s.Timer.Remaining != 15 {
		t.Fatalf("timer should reset, got %d", s.Timer.Remaining)
	}
}

func TestRecordRoll_Invalid(t *testing.T) {
	s := NewSession(board.Red, "ann", 15)
	if err := s.RecordRoll(3); err == nil {
		t.Fatal("a roll without a turn should fail")
	}
	s.BeginTurn(board.Red)
	if err := s.RecordRoll(0); err == nil {
		t.Fatal("roll 0 should fail")
	}
}

func TestSetNames(t *testing.T) {
	s := NewSession(board.Red, "ann", 15)
	if err := s.SetNames([]string{"a", "b", "c", "d", "e"}); err == nil {
		t.Fatal("five names should be rejected")
	}
	if err := s.SetNames([]string{"ann", "bob"}); err != nil {
		t.Fatalf("SetNames: %v", err)
	}
	names := s.Names()
	if names[board.Green] != "bob" || names[board.Yellow] != "" {
		t.Fatalf("names = %v", names)
	}
}

func TestSnapshot(t *testing.T) {
	s := NewSession(board.Green, "bob", 15)
	s.BeginTurn(board.Green)
	if err := s.RecordRoll(6); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot(state.PhaseRollCompleted)
	if snap.Phase != state.PhaseRollCompleted || snap.Roll != 6 || !snap.MyTurn() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Pieces) != board.NumPieces || len(snap.Standings) != board.NumColors {
		t.Fatal("snapshot should carry every piece and standing")
	}
	movable := 0
	for _, p := range snap.MyPieces() {
		if p.Movable {
			movable++
		}
	}
	if movable != board.PiecesPerColor {
		t.Fatalf("all four green pieces can leave home on a six, got %d", movable)
	}

	// The snapshot is a copy.
	snap.Pieces[0].Steps = 30
	if p, _ := s.Board.Piece(0); p.Steps != board.Home {
		t.Fatal("mutating a snapshot changed the board")
	}
}

func TestClose(t *testing.T) {
	s := NewSession(board.Red, "ann", 15)
	s.BeginTurn(board.Red)
	s.Close()
	for i, p := range s.Players {
		if p != nil {
			t.Fatalf("player %d survived Close", i)
		}
	}
	if _, ok := s.Current(); ok {
		t.Fatal("Close should clear the turn")
	}
}
