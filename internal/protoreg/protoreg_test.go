package protoreg_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fedreq/internal/coordinator"
	"github.com/hanpama/fedreq/internal/dedup"
	"github.com/hanpama/fedreq/internal/protoreg"
	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

var (
	reviewsKey   = reqmap.Key{FetchNode: "Product.reviews", Slot: "representations"}
	inventoryKey = reqmap.Key{FetchNode: "Product.inventory", Slot: "representations"}
)

const slotsFile = `
# reviews subgraph
Product.reviews.representations Reviews batch id:string score:int32 tags:[string] author:{id:string,name:string} -> string
Product.inventory.representations Inventory upc:string -> int64
`

func buildTestRegistry(t *testing.T) *protoreg.Registry {
	t.Helper()
	specs, err := protoreg.ParseSlotSpecs(strings.NewReader(slotsFile))
	require.NoError(t, err)
	reg, err := protoreg.Build("fedreq.subgraphs", specs)
	require.NoError(t, err)
	return reg
}

func TestParseSlotSpec(t *testing.T) {
	s, err := protoreg.ParseSlotSpec(`Product.reviews.representations Reviews batch id:string tags:[string] author:{id:string,aliases:[string]} -> [int64]`)
	require.NoError(t, err)
	want := protoreg.SlotSpec{
		Key:     reviewsKey,
		Service: "Reviews",
		Batch:   true,
		Fields: []protoreg.FieldSpec{
			{Name: "id", Type: "string"},
			{Name: "tags", Type: "string", Repeated: true},
			{Name: "author", Fields: []protoreg.FieldSpec{
				{Name: "id", Type: "string"},
				{Name: "aliases", Type: "string", Repeated: true},
			}},
		},
		Result: protoreg.FieldSpec{Name: "data", Type: "int64", Repeated: true},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("slot spec mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"id", "tags", "author"}, s.Layout().Fields)
}

func TestParseSlotSpec_Defaults(t *testing.T) {
	s, err := protoreg.ParseSlotSpec(`User.posts.by_author Posts`)
	require.NoError(t, err)
	assert.Equal(t, reqmap.Key{FetchNode: "User.posts", Slot: "by_author"}, s.Key)
	assert.False(t, s.Batch)
	assert.Empty(t, s.Fields)
	assert.Equal(t, "string", s.Result.Type)
}

func TestParseSlotSpec_Errors(t *testing.T) {
	for _, line := range []string{
		`Product`,
		`Product Reviews`,
		`Product. Reviews`,
		`Product.reviews.representations Reviews id`,
		`Product.reviews.representations Reviews id:`,
		`Product.reviews.representations Reviews tags:[string`,
		`Product.reviews.representations Reviews author:{id:string`,
		`Product.reviews.representations Reviews author:{}`,
		`Product.reviews.representations Reviews id:string ->`,
		`Product.reviews.representations Reviews id:string -> string extra`,
	} {
		_, err := protoreg.ParseSlotSpec(line)
		assert.Error(t, err, line)
	}
}

func TestParseSlotSpecs_ReportsLine(t *testing.T) {
	_, err := protoreg.ParseSlotSpecs(strings.NewReader("# header\n\nProduct.reviews.representations Reviews id\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestBuild_BatchSlot(t *testing.T) {
	reg := buildTestRegistry(t)
	require.Nil(t, reg.GetSingleDescriptor(reviewsKey))
	md := reg.GetBatchDescriptor(reviewsKey)
	require.NotNil(t, md)
	assert.Equal(t, protoreflect.FullName("fedreq.subgraphs.ReviewsService.BatchFetchProductReviewsByRepresentations"), md.FullName())

	batches := md.Input().Fields().ByName("batches")
	require.NotNil(t, batches)
	assert.True(t, batches.IsList())
	assert.Equal(t, protoreflect.FieldNumber(1), batches.Number())

	item := batches.Message()
	assert.Equal(t, protoreflect.Name("FetchProductReviewsByRepresentationsRequest"), item.Name())
	fields := item.Fields()
	require.Equal(t, 4, fields.Len())
	var names []string
	for i := 0; i < fields.Len(); i++ {
		names = append(names, string(fields.Get(i).Name()))
	}
	assert.Equal(t, []string{"id", "score", "tags", "author"}, names)
	assert.True(t, fields.ByName("tags").IsList())
	author := fields.ByName("author").Message()
	require.NotNil(t, author)
	assert.Equal(t, protoreflect.Name("FetchProductReviewsByRepresentationsRequestAuthor"), author.Name())
	assert.Equal(t, 2, author.Fields().Len())

	out := md.Output().Fields().ByName("batches").Message()
	assert.Equal(t, protoreflect.StringKind, out.Fields().ByName("data").Kind())
}

func TestBuild_SingleSlot(t *testing.T) {
	reg := buildTestRegistry(t)
	require.Nil(t, reg.GetBatchDescriptor(inventoryKey))
	md := reg.GetSingleDescriptor(inventoryKey)
	require.NotNil(t, md)
	assert.Equal(t, protoreflect.Name("FetchProductInventoryByRepresentations"), md.Name())
	assert.Equal(t, protoreflect.Int64Kind, md.Output().Fields().ByName("data").Kind())
}

func TestBuild_OneFilePerService(t *testing.T) {
	reg := buildTestRegistry(t)
	files := reg.GetAllServiceFiles()
	require.Len(t, files, 2)
	assert.Equal(t, "fedreq/subgraphs/reviews.proto", files[0].Path())
	assert.Equal(t, "fedreq/subgraphs/inventory.proto", files[1].Path())
	assert.Equal(t, []reqmap.Key{reviewsKey, inventoryKey}, reg.Keys())

	l, ok := reg.Layout(reviewsKey)
	require.True(t, ok)
	assert.Equal(t, 4, l.Arity())
	_, ok = reg.Layout(reqmap.Key{FetchNode: "x", Slot: "y"})
	assert.False(t, ok)
}

func TestBuild_FieldNumbersStable(t *testing.T) {
	a := buildTestRegistry(t).GetBatchDescriptor(reviewsKey).Input().Fields().ByName("batches").Message().Fields()
	b := buildTestRegistry(t).GetBatchDescriptor(reviewsKey).Input().Fields().ByName("batches").Message().Fields()
	seen := map[protoreflect.FieldNumber]bool{}
	for i := 0; i < a.Len(); i++ {
		n := a.Get(i).Number()
		assert.Equal(t, n, b.Get(i).Number())
		assert.False(t, seen[n])
		assert.False(t, n >= 19000 && n <= 19999)
		seen[n] = true
	}
}

func TestBuild_Errors(t *testing.T) {
	ok := protoreg.SlotSpec{Key: reviewsKey, Service: "Reviews", Fields: []protoreg.FieldSpec{{Name: "id", Type: "string"}}}
	tests := []struct {
		name  string
		specs []protoreg.SlotSpec
	}{
		{"duplicate slot", []protoreg.SlotSpec{ok, ok}},
		{"no service", []protoreg.SlotSpec{{Key: reviewsKey}}},
		{"incomplete key", []protoreg.SlotSpec{{Key: reqmap.Key{FetchNode: "Product.reviews"}, Service: "Reviews"}}},
		{"unknown type", []protoreg.SlotSpec{{Key: reviewsKey, Service: "Reviews", Fields: []protoreg.FieldSpec{{Name: "id", Type: "ID"}}}}},
		{"duplicate field", []protoreg.SlotSpec{{Key: reviewsKey, Service: "Reviews", Fields: []protoreg.FieldSpec{{Name: "id", Type: "string"}, {Name: "id", Type: "int64"}}}}},
		{"colliding method names", []protoreg.SlotSpec{
			ok,
			{Key: reqmap.Key{FetchNode: "Product_reviews", Slot: "representations"}, Service: "Reviews"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protoreg.Build("fedreq.subgraphs", tt.specs)
			assert.Error(t, err)
		})
	}
}

func TestRender(t *testing.T) {
	reg := buildTestRegistry(t)
	var buf bytes.Buffer
	require.NoError(t, protoreg.Render(reg, &buf))
	out := buf.String()
	assert.Contains(t, out, "package fedreq.subgraphs;")
	assert.Contains(t, out, "service ReviewsService")
	assert.Contains(t, out, "rpc BatchFetchProductReviewsByRepresentations")
	assert.Contains(t, out, "Serves fetch slot Product.reviews.representations.")
	assert.Contains(t, out, "service InventoryService")
}

func TestRenderDir(t *testing.T) {
	reg := buildTestRegistry(t)
	dir := t.TempDir()
	require.NoError(t, protoreg.RenderDir(reg, dir))
	b, err := os.ReadFile(filepath.Join(dir, "fedreq", "subgraphs", "reviews.proto"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "message FetchProductReviewsByRepresentationsRequest")
}

func TestRegistry_ServesCoordinator(t *testing.T) {
	reg := buildTestRegistry(t)
	md := reg.GetBatchDescriptor(reviewsKey)

	resp := dynamicpb.NewMessage(md.Output())
	of := md.Output().Fields().ByName("batches")
	item := dynamicpb.NewMessage(of.Message())
	item.Set(of.Message().Fields().ByName("data"), protoreflect.ValueOfString("r1-reviews"))
	resp.Mutable(of).List().Append(protoreflect.ValueOfMessage(item))

	mt := coordinator.NewMockTransport(resp)
	c := coordinator.New(reg, mt)
	v := reqvalue.MustParse(`{id: "r1", score: 4, tags: ["a"], author: {id: "u1", name: null}}`)
	res := c.Dispatch(context.Background(), reviewsKey, []dedup.Group{{Canonical: v, Members: []dedup.ObjectID{7, 9}}})
	require.Equal(t, []coordinator.Result{{Value: "r1-reviews"}}, res)

	calls := mt.Calls()
	require.Len(t, calls, 1)
	req := calls[0].Request.ProtoReflect()
	sent := req.Get(req.Descriptor().Fields().ByName("batches")).List().Get(0).Message()
	author := sent.Get(sent.Descriptor().Fields().ByName("author")).Message()
	nameField := author.Descriptor().Fields().ByName("name")
	assert.False(t, author.Has(nameField))
	assert.Equal(t, int64(4), sent.Get(sent.Descriptor().Fields().ByName("score")).Int())
}
