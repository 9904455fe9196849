package slot

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/resource"
)

type stubResource struct{ kind resource.Kind }

func (r *stubResource) Kind() resource.Kind { return r.kind }

func newTable(t *testing.T) *resource.Table {
	t.Helper()
	f := resource.FactoryFunc(func(desc resource.Descriptor, entry *resource.Entry, table *resource.Table) (resource.Resource, error) {
		return &stubResource{kind: desc.Kind()}, nil
	})
	table := resource.NewTable(resource.NewNames(), f)
	for name, desc := range map[string]resource.Descriptor{
		"QuadIB":  resource.MustDescriptor(resource.KindIndexBuffer, resource.BufferParams{Size: 12}),
		"Opaque":  resource.MustDescriptor(resource.KindBlendState, resource.BlendParams{}),
		"Albedo":  resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1}),
		"Shadows": resource.MustDescriptor(resource.KindTexture, resource.TextureParams{Width: 1, Height: 1}),
	} {
		if _, err := table.AddEntry(name, desc); err != nil {
			t.Fatalf("AddEntry(%s): %v", name, err)
		}
	}
	return table
}

func TestStaticSlotTableLayout(t *testing.T) {
	st := NewStaticSlotTable(resource.NewNames())

	want := 10 + MaxVertexBuffers + MaxTargets + MaxRWBuffers
	if st.Len() != want {
		t.Fatalf("expected %d static slots, got %d", want, st.Len())
	}
	slots := st.Slots()
	if slots[0].Name != Effect || slots[len(slots)-1].Name != PipelineState {
		t.Errorf("unexpected slot order: first %s, last %s", slots[0].Name, slots[len(slots)-1].Name)
	}
	if s, ok := st.Slot(RWBuffer(2)); !ok || s.Kind != resource.KindBuffer || s.Key != "RWBuffer2" {
		t.Errorf("unexpected rw buffer slot %+v", s)
	}

	if err := st.AddResourceSlot("Extra", resource.KindTexture, "extra"); !errors.Is(err, ErrFixedTable) {
		t.Errorf("expected ErrFixedTable, got %v", err)
	}
	if err := st.AddResourceSlot(IndexBuffer, resource.KindTexture, ""); !errors.Is(err, ErrSlotExists) {
		t.Errorf("expected ErrSlotExists, got %v", err)
	}
}

func TestBindFetchUnbindRoundTrip(t *testing.T) {
	table := newTable(t)
	st := NewStaticSlotTable(table.Names())

	if err := st.BindResource(IndexBuffer, "QuadIB"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Entry(IndexBuffer) != nil {
		t.Fatal("binding must not resolve before FetchResources")
	}
	if err := st.FetchResources(table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Entry(IndexBuffer) != table.Entry("QuadIB") {
		t.Fatal("slot did not resolve to the bound entry")
	}
	if st.Resource(IndexBuffer) != nil {
		t.Error("slot should report nil until the entry is built")
	}

	if err := st.UnbindResource(IndexBuffer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Bound(IndexBuffer) != "" || st.Entry(IndexBuffer) != nil {
		t.Error("unbind did not clear the slot")
	}
	if err := st.FetchResources(table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Entry(IndexBuffer) != nil {
		t.Error("unbound slot resolved to an entry")
	}
}

func TestFetchResourcesCachesEntryNotResource(t *testing.T) {
	table := newTable(t)
	st := NewStaticSlotTable(table.Names())
	_ = st.BindResource(BlendState, "Opaque")
	_ = st.FetchResources(table)

	if err := table.Entry("Opaque").CreateResource(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Resource(BlendState) == nil {
		t.Error("resource built after fetch is not visible through the slot")
	}
}

func TestUnknownSlotAndMissingEntry(t *testing.T) {
	table := newTable(t)
	st := NewStaticSlotTable(table.Names())

	if err := st.BindResource("Nope", "QuadIB"); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}
	if err := st.UnbindResource("Nope"); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("expected ErrUnknownSlot, got %v", err)
	}

	_ = st.BindResource(IndexBuffer, "NotRegistered")
	if err := st.FetchResources(table); err != nil {
		t.Fatalf("missing entries should not be an error: %v", err)
	}
	if st.Entry(IndexBuffer) != nil {
		t.Error("missing entry resolved")
	}
	if st.Bound(IndexBuffer) != "NotRegistered" {
		t.Errorf("bound name lost: %q", st.Bound(IndexBuffer))
	}
}

func TestFetchResourcesKindMismatch(t *testing.T) {
	table := newTable(t)
	st := NewStaticSlotTable(table.Names())
	_ = st.BindResource(IndexBuffer, "Opaque")

	if err := st.FetchResources(table); !errors.Is(err, resource.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if st.Entry(IndexBuffer) != nil {
		t.Error("mismatched entry was cached")
	}
}

func TestDynamicSlotTable(t *testing.T) {
	table := newTable(t)
	dt := NewDynamicSlotTable(table.Names())

	if err := dt.AddResourceSlot("BaseColorTex", resource.KindTexture, "albedo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dt.AddResourceSlot("ShadowTex", resource.KindTexture, "shadow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dt.AddResourceSlot("BaseColorTex", resource.KindTexture, "other"); !errors.Is(err, ErrSlotExists) {
		t.Errorf("expected ErrSlotExists, got %v", err)
	}

	_ = dt.BindResource("BaseColorTex", "Albedo")
	_ = dt.BindResource("ShadowTex", "Shadows")
	if err := dt.FetchResources(table); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slots := dt.Slots()
	if len(slots) != 2 || slots[0].Name != "BaseColorTex" || slots[1].Key != "shadow" {
		t.Errorf("unexpected slots %+v", slots)
	}
	if slots[0].Entry() != table.Entry("Albedo") {
		t.Error("dynamic slot did not resolve")
	}

	// rebinding to another entry drops the cached entry until the next fetch
	_ = dt.BindResource("BaseColorTex", "Shadows")
	if dt.Entry("BaseColorTex") != nil {
		t.Error("rebinding kept the stale entry")
	}
}
