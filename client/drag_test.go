package client

import "testing"

func TestPlanDropOnEmptyList(t *testing.T) {
	board := testBoard()

	plan, ok := PlanDrop(board, "card-1", "list-b", "")
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.ListID != "list-b" || plan.Position != 0 {
		t.Errorf("plan = %+v, want list-b position 0", plan)
	}
}

func TestPlanDropOnHoveredCard(t *testing.T) {
	board := testBoard()

	// Hovering card-3 in the same list targets its index
	plan, ok := PlanDrop(board, "card-1", "list-a", "card-3")
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.Position != 2 {
		t.Errorf("position %d, want 2", plan.Position)
	}
}

func TestPlanDropAppendsWithinSameList(t *testing.T) {
	board := testBoard()

	// Dropping on the list itself appends; within the same list the card's
	// own slot is vacated first, so the end index is one less
	plan, ok := PlanDrop(board, "card-1", "list-a", "")
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.Position != 2 {
		t.Errorf("position %d, want 2", plan.Position)
	}
}

func TestPlanDropAppendsAcrossLists(t *testing.T) {
	board := testBoard()
	board.Lists[1].Cards = append(board.Lists[1].Cards, board.Lists[0].Cards[2])
	board.Lists[0].Cards = board.Lists[0].Cards[:2]

	plan, ok := PlanDrop(board, "card-1", "list-b", "")
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.Position != 1 {
		t.Errorf("position %d, want 1", plan.Position)
	}
}

func TestPlanDropMissingTargets(t *testing.T) {
	board := testBoard()

	if _, ok := PlanDrop(board, "card-1", "no-such-list", ""); ok {
		t.Error("expected no plan for a missing list")
	}
	if _, ok := PlanDrop(board, "no-such-card", "list-b", ""); ok {
		t.Error("expected no plan for a missing card")
	}
}

func TestPlanDropOntoItselfIsNoop(t *testing.T) {
	board := testBoard()

	plan, ok := PlanDrop(board, "card-2", "list-a", "card-2")
	if !ok {
		t.Fatal("expected a plan")
	}

	state, ok := ApplyMove(NewState(board), plan.CardID, plan.ListID, plan.Position)
	if !ok {
		t.Fatal("expected the move to apply")
	}
	got := cardIDs(state.Board.Lists[0])
	want := []string{"card-1", "card-2", "card-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order %v, want %v", got, want)
			break
		}
	}
}
