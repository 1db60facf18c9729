package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lgltools/platform/internal/clock"
	"github.com/lgltools/platform/internal/period"
	"github.com/lgltools/platform/internal/usage/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	usagedomain "github.com/lgltools/platform/internal/usage/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

type toolStub struct {
	tools map[string]*tooldomain.Tool
	links map[snowflake.ID]*tooldomain.WorkspaceTool
}

func (s *toolStub) Create(ctx context.Context, req tooldomain.CreateRequest) (*tooldomain.Tool, error) {
	return nil, nil
}

func (s *toolStub) List(ctx context.Context) ([]tooldomain.Tool, error) {
	return nil, nil
}

func (s *toolStub) GetBySlug(ctx context.Context, slug string) (*tooldomain.Tool, error) {
	tool, ok := s.tools[slug]
	if !ok {
		return nil, tooldomain.ErrNotFound
	}
	return tool, nil
}

func (s *toolStub) GetByID(ctx context.Context, id snowflake.ID) (*tooldomain.Tool, error) {
	for _, tool := range s.tools {
		if tool.ID == id {
			return tool, nil
		}
	}
	return nil, tooldomain.ErrNotFound
}

func (s *toolStub) GetWorkspaceLink(ctx context.Context, workspaceID, toolID snowflake.ID) (*tooldomain.WorkspaceTool, error) {
	link, ok := s.links[toolID]
	if !ok || link.WorkspaceID != workspaceID {
		return nil, nil
	}
	return link, nil
}

func (s *toolStub) Assign(ctx context.Context, req tooldomain.AssignRequest) (*tooldomain.WorkspaceTool, error) {
	return nil, nil
}

type workspaceStub struct {
	names map[snowflake.ID]string
}

func (s *workspaceStub) GetByID(ctx context.Context, id snowflake.ID) (*workspacedomain.Workspace, error) {
	name, ok := s.names[id]
	if !ok {
		return nil, workspacedomain.ErrNotFound
	}
	return &workspacedomain.Workspace{ID: id, Name: name}, nil
}

func (s *workspaceStub) GetBillingClient(ctx context.Context, id snowflake.ID) (*workspacedomain.BillingClient, error) {
	return nil, workspacedomain.ErrClientNotFound
}

func (s *workspaceStub) Create(ctx context.Context, req workspacedomain.CreateWorkspaceRequest) (*workspacedomain.Workspace, error) {
	return nil, nil
}

func (s *workspaceStub) CreateBillingClient(ctx context.Context, req workspacedomain.CreateBillingClientRequest) (*workspacedomain.BillingClient, error) {
	return nil, nil
}

func setupUsageService(t *testing.T, node *snowflake.Node, tools *toolStub, workspaces *workspaceStub, fake *clock.FakeClock) (usagedomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec(`CREATE TABLE usage_events (
		id BIGINT PRIMARY KEY,
		workspace_id BIGINT NOT NULL,
		user_id TEXT NOT NULL,
		tool_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		unit_cost_snapshot NUMERIC NOT NULL,
		metadata JSON,
		billing_period TEXT NOT NULL,
		billed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create usage_events: %v", err)
	}

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Repo:       repository.Provide(),
		Tools:      tools,
		Workspaces: workspaces,
	})
	return svc, db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func meteredTool(node *snowflake.Node, slug string, rate string) *tooldomain.Tool {
	return &tooldomain.Tool{
		ID:            node.Generate(),
		Slug:          slug,
		Name:          "Tool " + slug,
		ToolType:      "api",
		BillingConfig: []byte(fmt.Sprintf(`{"rate": %s, "unit": "call"}`, rate)),
		IsEnabled:     true,
	}
}

func linkFor(node *snowflake.Node, workspaceID snowflake.ID, tool *tooldomain.Tool) *tooldomain.WorkspaceTool {
	return &tooldomain.WorkspaceTool{
		ID:          node.Generate(),
		WorkspaceID: workspaceID,
		ToolID:      tool.ID,
		IsEnabled:   true,
	}
}

func TestRecordValidationSequence(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	otherWorkspaceID := node.Generate()

	enabled := meteredTool(node, "image-resize", "0.002")
	disabled := meteredTool(node, "ocr", "0.01")
	disabled.IsEnabled = false
	unassigned := meteredTool(node, "transcode", "0.05")
	offLink := meteredTool(node, "translate", "0.03")
	unpriced := meteredTool(node, "scan", "0.01")
	unpriced.BillingConfig = nil

	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{
			"image-resize": enabled,
			"ocr":          disabled,
			"transcode":    unassigned,
			"translate":    offLink,
			"scan":         unpriced,
		},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{
			enabled.ID:  linkFor(node, workspaceID, enabled),
			offLink.ID:  linkFor(node, workspaceID, offLink),
			unpriced.ID: linkFor(node, workspaceID, unpriced),
		},
	}
	tools.links[offLink.ID].IsEnabled = false

	fake := clock.NewFakeClock(time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)
	ctx := context.Background()

	base := usagedomain.RecordRequest{
		WorkspaceID: workspaceID,
		UserID:      "user-1",
		ToolSlug:    "image-resize",
		EventType:   "api_call",
		Quantity:    decimal.NewFromInt(1),
	}

	cases := []struct {
		name    string
		mutate  func(*usagedomain.RecordRequest)
		wantErr error
	}{
		{"zero quantity", func(r *usagedomain.RecordRequest) { r.Quantity = decimal.Zero }, usagedomain.ErrInvalidQuantity},
		{"negative quantity", func(r *usagedomain.RecordRequest) { r.Quantity = decimal.NewFromInt(-3) }, usagedomain.ErrInvalidQuantity},
		{"blank event type", func(r *usagedomain.RecordRequest) { r.EventType = "  " }, usagedomain.ErrInvalidEventType},
		{"unknown tool", func(r *usagedomain.RecordRequest) { r.ToolSlug = "nope" }, usagedomain.ErrToolNotFound},
		{"globally disabled", func(r *usagedomain.RecordRequest) { r.ToolSlug = "ocr" }, usagedomain.ErrToolDisabled},
		{"not assigned", func(r *usagedomain.RecordRequest) { r.ToolSlug = "transcode" }, usagedomain.ErrToolNotAssigned},
		{"assigned elsewhere", func(r *usagedomain.RecordRequest) { r.WorkspaceID = otherWorkspaceID }, usagedomain.ErrToolNotAssigned},
		{"disabled for workspace", func(r *usagedomain.RecordRequest) { r.ToolSlug = "translate" }, usagedomain.ErrToolDisabledForWorkspace},
		{"rate not configured", func(r *usagedomain.RecordRequest) { r.ToolSlug = "scan" }, usagedomain.ErrRateNotConfigured},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := svc.Record(ctx, req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	event, err := svc.Record(ctx, base)
	if err != nil {
		t.Fatalf("record valid event: %v", err)
	}
	if event.BillingPeriod != "2025-03" {
		t.Fatalf("expected billing period 2025-03, got %s", event.BillingPeriod)
	}
	if !event.UnitCostSnapshot.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("expected snapshot 0.002, got %s", event.UnitCostSnapshot)
	}
	if event.Billed {
		t.Fatal("new events must start unbilled")
	}
}

func TestRecordSnapshotSurvivesRateChange(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	tool := meteredTool(node, "image-resize", "0.002")
	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"image-resize": tool},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{tool.ID: linkFor(node, workspaceID, tool)},
	}
	fake := clock.NewFakeClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)
	ctx := context.Background()

	req := usagedomain.RecordRequest{
		WorkspaceID: workspaceID,
		UserID:      "user-1",
		ToolSlug:    "image-resize",
		EventType:   "api_call",
		Quantity:    decimal.NewFromInt(10),
	}
	first, err := svc.Record(ctx, req)
	if err != nil {
		t.Fatalf("record first: %v", err)
	}

	// Catalog price change must not touch events already recorded.
	tool.BillingConfig = []byte(`{"rate": 0.5, "unit": "call"}`)
	second, err := svc.Record(ctx, req)
	if err != nil {
		t.Fatalf("record second: %v", err)
	}

	if !first.UnitCostSnapshot.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("first snapshot changed: %s", first.UnitCostSnapshot)
	}
	if !second.UnitCostSnapshot.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("second snapshot wrong: %s", second.UnitCostSnapshot)
	}

	aggs, err := svc.Aggregate(ctx, period.YearMonth{Year: 2025, Month: time.March}, workspaceID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggs))
	}
	// 10*0.002 + 10*0.5
	if !aggs[0].TotalCost.Equal(decimal.RequireFromString("5.02")) {
		t.Fatalf("expected total cost 5.02, got %s", aggs[0].TotalCost)
	}
}

func TestRecordOverrideWinsOverGlobalRate(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	tool := meteredTool(node, "image-resize", "0.002")
	link := linkFor(node, workspaceID, tool)
	link.PricingOverride = []byte(`{"rate": 0.001}`)
	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"image-resize": tool},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{tool.ID: link},
	}
	fake := clock.NewFakeClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)

	event, err := svc.Record(context.Background(), usagedomain.RecordRequest{
		WorkspaceID: workspaceID,
		UserID:      "user-1",
		ToolSlug:    "image-resize",
		EventType:   "api_call",
		Quantity:    decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !event.UnitCostSnapshot.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("expected override rate 0.001, got %s", event.UnitCostSnapshot)
	}
}

func TestAggregateRollsUpPerWorkspaceAndTool(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	tool := meteredTool(node, "image-resize", "0.002")
	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"image-resize": tool},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{tool.ID: linkFor(node, workspaceID, tool)},
	}
	workspaces := &workspaceStub{names: map[snowflake.ID]string{workspaceID: "Acme"}}
	fake := clock.NewFakeClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, workspaces, fake)
	ctx := context.Background()

	for _, qty := range []int64{10, 20, 5} {
		_, err := svc.Record(ctx, usagedomain.RecordRequest{
			WorkspaceID: workspaceID,
			UserID:      "user-1",
			ToolSlug:    "image-resize",
			EventType:   "api_call",
			Quantity:    decimal.NewFromInt(qty),
		})
		if err != nil {
			t.Fatalf("record qty %d: %v", qty, err)
		}
	}

	aggs, err := svc.Aggregate(ctx, period.YearMonth{Year: 2025, Month: time.March}, workspaceID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggs))
	}
	agg := aggs[0]
	if !agg.TotalQuantity.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected quantity 35, got %s", agg.TotalQuantity)
	}
	if !agg.TotalCost.Equal(decimal.RequireFromString("0.07")) {
		t.Fatalf("expected cost 0.07, got %s", agg.TotalCost)
	}
	if agg.EventCount != 3 {
		t.Fatalf("expected 3 events, got %d", agg.EventCount)
	}
	if agg.WorkspaceName != "Acme" || agg.ToolSlug != "image-resize" {
		t.Fatalf("enrichment wrong: %+v", agg)
	}
}

func TestAggregateUnknownEnrichmentFallback(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	tool := meteredTool(node, "image-resize", "0.002")
	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"image-resize": tool},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{tool.ID: linkFor(node, workspaceID, tool)},
	}
	fake := clock.NewFakeClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)
	ctx := context.Background()

	if _, err := svc.Record(ctx, usagedomain.RecordRequest{
		WorkspaceID: workspaceID,
		UserID:      "user-1",
		ToolSlug:    "image-resize",
		EventType:   "api_call",
		Quantity:    decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Simulate the tool row disappearing from the catalog after recording.
	delete(tools.tools, "image-resize")

	aggs, err := svc.Aggregate(ctx, period.YearMonth{Year: 2025, Month: time.March}, workspaceID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate, got %d", len(aggs))
	}
	if aggs[0].WorkspaceName != "Unknown" {
		t.Fatalf("expected Unknown workspace, got %q", aggs[0].WorkspaceName)
	}
	if aggs[0].ToolSlug != "unknown" || aggs[0].ToolName != "Unknown Tool" {
		t.Fatalf("expected unknown tool fallback, got %+v", aggs[0])
	}
}

func TestAggregateConservation(t *testing.T) {
	node := mustNode(t)
	wsA := node.Generate()
	wsB := node.Generate()
	toolX := meteredTool(node, "tool-x", "0.002")
	toolY := meteredTool(node, "tool-y", "0.013")

	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"tool-x": toolX, "tool-y": toolY},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{},
	}
	fake := clock.NewFakeClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)
	ctx := context.Background()

	expected := decimal.Zero
	record := func(ws snowflake.ID, tool *tooldomain.Tool, slug string, qty string) {
		tools.links[tool.ID] = linkFor(node, ws, tool)
		quantity := decimal.RequireFromString(qty)
		event, err := svc.Record(ctx, usagedomain.RecordRequest{
			WorkspaceID: ws,
			UserID:      "user-1",
			ToolSlug:    slug,
			EventType:   "api_call",
			Quantity:    quantity,
		})
		if err != nil {
			t.Fatalf("record %s/%s: %v", slug, qty, err)
		}
		expected = expected.Add(event.Cost())
	}

	record(wsA, toolX, "tool-x", "10")
	record(wsA, toolX, "tool-x", "2.5")
	record(wsA, toolY, "tool-y", "7")
	record(wsB, toolY, "tool-y", "0.25")

	aggs, err := svc.Aggregate(ctx, period.YearMonth{Year: 2025, Month: time.March}, 0)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	total := decimal.Zero
	for _, agg := range aggs {
		total = total.Add(agg.TotalCost)
	}
	if !total.Equal(expected) {
		t.Fatalf("aggregate total %s != event total %s", total, expected)
	}
}

func TestMarkBilledIdempotent(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	tool := meteredTool(node, "image-resize", "0.002")
	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"image-resize": tool},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{tool.ID: linkFor(node, workspaceID, tool)},
	}
	fake := clock.NewFakeClock(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)
	ctx := context.Background()
	ym := period.YearMonth{Year: 2025, Month: time.March}

	for i := 0; i < 3; i++ {
		if _, err := svc.Record(ctx, usagedomain.RecordRequest{
			WorkspaceID: workspaceID,
			UserID:      "user-1",
			ToolSlug:    "image-resize",
			EventType:   "api_call",
			Quantity:    decimal.NewFromInt(1),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	affected, err := svc.MarkBilled(ctx, ym, workspaceID, tool.ID)
	if err != nil {
		t.Fatalf("mark billed: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 rows billed, got %d", affected)
	}

	again, err := svc.MarkBilled(ctx, ym, workspaceID, tool.ID)
	if err != nil {
		t.Fatalf("mark billed again: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected 0 rows on repeat, got %d", again)
	}

	aggs, err := svc.Aggregate(ctx, ym, workspaceID)
	if err != nil {
		t.Fatalf("aggregate after billing: %v", err)
	}
	if len(aggs) != 0 {
		t.Fatalf("billed events must not aggregate, got %d groups", len(aggs))
	}
}

func TestAggregateScopedToPeriod(t *testing.T) {
	node := mustNode(t)
	workspaceID := node.Generate()
	tool := meteredTool(node, "image-resize", "0.002")
	tools := &toolStub{
		tools: map[string]*tooldomain.Tool{"image-resize": tool},
		links: map[snowflake.ID]*tooldomain.WorkspaceTool{tool.ID: linkFor(node, workspaceID, tool)},
	}
	fake := clock.NewFakeClock(time.Date(2025, time.February, 27, 12, 0, 0, 0, time.UTC))
	svc, _ := setupUsageService(t, node, tools, &workspaceStub{}, fake)
	ctx := context.Background()

	req := usagedomain.RecordRequest{
		WorkspaceID: workspaceID,
		UserID:      "user-1",
		ToolSlug:    "image-resize",
		EventType:   "api_call",
		Quantity:    decimal.NewFromInt(4),
	}
	if _, err := svc.Record(ctx, req); err != nil {
		t.Fatalf("record feb: %v", err)
	}

	fake.Advance(72 * time.Hour) // crosses into March
	if _, err := svc.Record(ctx, req); err != nil {
		t.Fatalf("record mar: %v", err)
	}

	feb, err := svc.Aggregate(ctx, period.YearMonth{Year: 2025, Month: time.February}, workspaceID)
	if err != nil {
		t.Fatalf("aggregate feb: %v", err)
	}
	mar, err := svc.Aggregate(ctx, period.YearMonth{Year: 2025, Month: time.March}, workspaceID)
	if err != nil {
		t.Fatalf("aggregate mar: %v", err)
	}
	if len(feb) != 1 || feb[0].EventCount != 1 {
		t.Fatalf("february aggregate wrong: %+v", feb)
	}
	if len(mar) != 1 || mar[0].EventCount != 1 {
		t.Fatalf("march aggregate wrong: %+v", mar)
	}
}
