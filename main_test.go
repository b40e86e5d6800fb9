package main

import (
	"context"
	"testing"

	"github.com/mjasion/balena-home/climate/store"
	"github.com/mjasion/balena-home/climate/tado"
)

type stubAPI struct {
	tado.API
	homes []tado.HomeBase
}

func (s stubAPI) Me(context.Context) (*tado.User, error) {
	return &tado.User{Homes: s.homes}, nil
}

func (s stubAPI) Zones(context.Context, int64) ([]tado.Zone, error) {
	one, two := int64(1), int64(2)
	return []tado.Zone{{ID: &one}, {ID: &two}, {}}, nil
}

func (s stubAPI) Devices(context.Context, int64) ([]tado.Device, error) {
	serial := "VA0001"
	return []tado.Device{{SerialNo: &serial}}, nil
}

func TestResolveHomes(t *testing.T) {
	ctx := context.Background()
	id := int64(42)
	api := stubAPI{homes: []tado.HomeBase{{ID: &id}, {}}}

	ids, err := resolveHomes(ctx, api, []int64{7})
	if err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Errorf("Expected configured homes to win, got %v (%v)", ids, err)
	}

	ids, err = resolveHomes(ctx, api, nil)
	if err != nil || len(ids) != 1 || ids[0] != 42 {
		t.Errorf("Expected discovered home 42, got %v (%v)", ids, err)
	}

	if _, err := resolveHomes(ctx, stubAPI{}, nil); err == nil {
		t.Error("Expected error for an account without homes")
	}
}

func TestSeedMemory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	if err := seedMemory(ctx, stubAPI{}, mem, []int64{42}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	home, err := mem.HomeID(ctx, 42)
	if err != nil {
		t.Fatalf("Expected home to be registered, got: %v", err)
	}
	zones, _ := mem.ZoneIDs(ctx, home)
	if len(zones) != 2 {
		t.Errorf("Expected 2 zones, got %d", len(zones))
	}
	devices, _ := mem.DeviceIDs(ctx, home)
	if _, ok := devices["VA0001"]; !ok {
		t.Errorf("Expected device VA0001, got %v", devices)
	}
}
