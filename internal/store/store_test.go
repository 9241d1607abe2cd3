package store

import (
	"testing"

	"tradecore/pkg/model"
	"tradecore/pkg/money"
)

func testPosition(t *testing.T, ownerID string) *model.Position {
	t.Helper()
	pos, err := model.NewPosition(ownerID, model.NewSymbol("BTC", "USDT"), model.PositionLong, money.MustParse("1.5"), money.MustParse("100"), money.MustParse("10"), money.MustParse("10"))
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	return pos
}

func TestSaveAndLoadPosition(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	pos := testPosition(t, "owner-1")
	if err := s.SavePosition(pos); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	loaded, err := s.LoadPosition(pos.OwnerID, pos.Symbol)
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadPosition returned nil")
	}
	if !loaded.Size.Equal(pos.Size) {
		t.Errorf("Size = %s, want %s", loaded.Size.Decimal.String(), pos.Size.Decimal.String())
	}
	if !loaded.EntryPrice.Equal(pos.EntryPrice) {
		t.Errorf("EntryPrice = %s, want %s", loaded.EntryPrice.Decimal.String(), pos.EntryPrice.Decimal.String())
	}
}

func TestLoadPositionMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	loaded, err := s.LoadPosition("nonexistent", model.NewSymbol("BTC", "USDT"))
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing position, got %+v", loaded)
	}
}

func TestSavePositionOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	pos := testPosition(t, "owner-1")
	_ = s.SavePosition(pos)

	pos.Size = money.MustParse("2.5")
	_ = s.SavePosition(pos)

	loaded, err := s.LoadPosition(pos.OwnerID, pos.Symbol)
	if err != nil {
		t.Fatalf("LoadPosition: %v", err)
	}
	if !loaded.Size.Equal(money.MustParse("2.5")) {
		t.Errorf("Size = %s, want 2.5 (latest save)", loaded.Size.Decimal.String())
	}
}

func TestLoadAllReturnsEveryPersistedPosition(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.SavePosition(testPosition(t, "owner-1"))
	_ = s.SavePosition(testPosition(t, "owner-2"))

	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("LoadAll returned %d positions, want 2", len(all))
	}
}
