package coordinator

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fedreq/internal/dedup"
	"github.com/hanpama/fedreq/internal/eventbus"
	"github.com/hanpama/fedreq/internal/events"
	"github.com/hanpama/fedreq/internal/reqmap"
	"github.com/hanpama/fedreq/internal/reqvalue"
)

// Coordinator issues one subgraph request item per dedup group and hands
// the single response back to every member of the group.
//
// Invariants and boundaries:
//   - Registry trust: a slot without a batch or single method is a
//     configuration error and panics.
//   - Null short-circuit: a group whose canonical value is Null is not sent;
//     its result is (nil, nil).
//   - Determinism: results are aligned with the input groups; one failing
//     group does not affect the others.
//   - No retries: a transport error is reported on every affected group.
type Coordinator struct {
	reg       Registry
	transport Transport
}

func New(registry Registry, transport Transport) *Coordinator {
	return &Coordinator{reg: registry, transport: transport}
}

// Result is the outcome of one group's fetch.
type Result struct {
	// Value is the decoded `data` field of the response item, or nil.
	Value any
	// Error is specific to this group.
	Error error
}

// Batch is the flushed output of one fetch slot's index.
type Batch struct {
	Key    reqmap.Key
	Groups []dedup.Group
}

// Dispatch sends the groups of one slot and returns one Result per group,
// in group order.
func (c *Coordinator) Dispatch(ctx context.Context, key reqmap.Key, groups []dedup.Group) []Result {
	results := make([]Result, len(groups))
	if len(groups) == 0 {
		return results
	}
	start := time.Now()
	eventbus.Publish(ctx, events.DispatchStart{Key: key.String(), Groups: len(groups)})

	if md := c.reg.GetBatchDescriptor(key); md != nil {
		c.executeBatch(ctx, md, groups, results)
	} else if md := c.reg.GetSingleDescriptor(key); md != nil {
		for i, g := range groups {
			results[i] = c.executeSingle(ctx, md, g)
		}
	} else {
		panic(fmt.Sprintf("coordinator: no subgraph method registered for %s", key))
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}
	eventbus.Publish(ctx, events.DispatchFinish{Key: key.String(), Groups: len(groups), Failed: failed, Duration: time.Since(start)})
	return results
}

// DispatchAll dispatches several slots in parallel and returns their
// results in batch order.
func (c *Coordinator) DispatchAll(ctx context.Context, batches []Batch) [][]Result {
	out := make([][]Result, len(batches))
	if len(batches) == 1 {
		out[0] = c.Dispatch(ctx, batches[0].Key, batches[0].Groups)
		return out
	}
	var wg sync.WaitGroup
	wg.Add(len(batches))
	for i, b := range batches {
		go func() {
			defer wg.Done()
			out[i] = c.Dispatch(ctx, b.Key, b.Groups)
		}()
	}
	wg.Wait()
	return out
}

// FanOut distributes each group's result to all of its members. Object ids
// are unique within a batch, so every id receives exactly one result.
func FanOut(groups []dedup.Group, results []Result) map[dedup.ObjectID]Result {
	n := 0
	for _, g := range groups {
		n += len(g.Members)
	}
	out := make(map[dedup.ObjectID]Result, n)
	for i, g := range groups {
		for _, id := range g.Members {
			out[id] = results[i]
		}
	}
	return out
}

// executeBatch builds one batch request with an item per non-null group and
// writes per-group results in place.
func (c *Coordinator) executeBatch(ctx context.Context, md protoreflect.MethodDescriptor, groups []dedup.Group, results []Result) {
	batchesField := md.Input().Fields().ByName("batches")
	if batchesField == nil {
		panic(fmt.Sprintf("coordinator: %s input has no batches field", md.FullName()))
	}
	req := dynamicpb.NewMessage(md.Input())
	list := req.Mutable(batchesField).List()
	itemDesc := batchesField.Message()

	included := make([]int, 0, len(groups))
	for i, g := range groups {
		if g.Canonical.IsNull() {
			continue
		}
		item := dynamicpb.NewMessage(itemDesc)
		if err := encodeObject(item, g.Canonical); err != nil {
			results[i] = Result{Error: err}
			continue
		}
		list.Append(protoreflect.ValueOfMessage(item))
		included = append(included, i)
	}
	if len(included) == 0 {
		return
	}

	resp, err := c.transport.Call(ctx, md, req)
	if err != nil {
		for _, i := range included {
			results[i] = Result{Error: err}
		}
		return
	}
	of := md.Output().Fields().ByName("batches")
	if of == nil {
		for _, i := range included {
			results[i] = Result{Error: fmt.Errorf("missing batches field in response")}
		}
		return
	}
	out := resp.Get(of).List()
	for k, i := range included {
		if k >= out.Len() {
			results[i] = Result{Error: fmt.Errorf("missing batch element %d", k)}
			continue
		}
		val, herr := decodeData(out.Get(k).Message())
		results[i] = Result{Value: val, Error: herr}
	}
}

func (c *Coordinator) executeSingle(ctx context.Context, md protoreflect.MethodDescriptor, g dedup.Group) Result {
	if g.Canonical.IsNull() {
		return Result{}
	}
	req := dynamicpb.NewMessage(md.Input())
	if err := encodeObject(req, g.Canonical); err != nil {
		return Result{Error: err}
	}
	resp, err := c.transport.Call(ctx, md, req)
	if err != nil {
		return Result{Error: err}
	}
	val, herr := decodeData(resp)
	return Result{Value: val, Error: herr}
}

// encodeObject fills msg positionally from an object value: field i of v
// goes to the i-th declared field of msg. Null fields stay unset.
func encodeObject(msg protoreflect.Message, v reqvalue.Value) error {
	if v.Kind() != reqvalue.KindObject {
		return fmt.Errorf("coordinator: %s expects an object requirement, got %s", msg.Descriptor().FullName(), v.Kind())
	}
	fields := msg.Descriptor().Fields()
	if v.Len() != fields.Len() {
		return fmt.Errorf("coordinator: %s has %d fields, requirement has %d: %w",
			msg.Descriptor().FullName(), fields.Len(), v.Len(), reqvalue.ErrInvalidValueShape)
	}
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		fv := v.Index(i)
		if fv.IsNull() {
			continue
		}
		if fd.IsList() {
			if fv.Kind() != reqvalue.KindList {
				return fmt.Errorf("coordinator: field %s expects a list, got %s", fd.FullName(), fv.Kind())
			}
			list := msg.Mutable(fd).List()
			for j := 0; j < fv.Len(); j++ {
				pv, err := toProto(fd, fv.Index(j))
				if err != nil {
					return err
				}
				list.Append(pv)
			}
			continue
		}
		pv, err := toProto(fd, fv)
		if err != nil {
			return err
		}
		msg.Set(fd, pv)
	}
	return nil
}

// toProto converts a single requirement value for fd. Int literals are
// accepted by float fields as GraphQL input coercion allows; no other
// conversion happens.
func toProto(fd protoreflect.FieldDescriptor, v reqvalue.Value) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.BoolValue(); ok {
			return protoreflect.ValueOfBool(b), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if n, ok := v.IntValue(); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return protoreflect.ValueOfInt32(int32(n)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if n, ok := v.IntValue(); ok {
			return protoreflect.ValueOfInt64(n), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if n, ok := v.IntValue(); ok && n >= 0 && n <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(n)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if n, ok := v.IntValue(); ok && n >= 0 {
			return protoreflect.ValueOfUint64(uint64(n)), nil
		}
		if s, ok := v.StringValue(); ok {
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				return protoreflect.ValueOfUint64(n), nil
			}
		}
	case protoreflect.FloatKind:
		if f, ok := v.FloatValue(); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
		if n, ok := v.IntValue(); ok {
			return protoreflect.ValueOfFloat32(float32(n)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := v.FloatValue(); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
		if n, ok := v.IntValue(); ok {
			return protoreflect.ValueOfFloat64(float64(n)), nil
		}
	case protoreflect.StringKind:
		if v.ScalarKind() == reqvalue.ScalarString {
			s, _ := v.StringValue()
			return protoreflect.ValueOfString(s), nil
		}
	case protoreflect.BytesKind:
		if v.ScalarKind() == reqvalue.ScalarString {
			s, _ := v.StringValue()
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return protoreflect.Value{}, fmt.Errorf("coordinator: field %s: %w", fd.FullName(), err)
			}
			return protoreflect.ValueOfBytes(b), nil
		}
	case protoreflect.EnumKind:
		if v.ScalarKind() == reqvalue.ScalarEnum {
			s, _ := v.StringValue()
			if ev := fd.Enum().Values().ByName(protoreflect.Name(s)); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
		}
	case protoreflect.MessageKind:
		if v.Kind() == reqvalue.KindObject {
			nested := dynamicpb.NewMessage(fd.Message())
			if err := encodeObject(nested, v); err != nil {
				return protoreflect.Value{}, err
			}
			return protoreflect.ValueOfMessage(nested), nil
		}
	}
	return protoreflect.Value{}, fmt.Errorf("coordinator: field %s (%s) cannot hold %s", fd.FullName(), fd.Kind(), v)
}

// decodeData extracts the top-level `data` field of a response item.
func decodeData(resp protoreflect.Message) (any, error) {
	if resp == nil || !resp.IsValid() {
		return nil, nil
	}
	fd := resp.Descriptor().Fields().ByName("data")
	if fd == nil {
		return nil, fmt.Errorf("missing data field in response")
	}
	if fd.IsList() {
		lst := resp.Get(fd).List()
		out := make([]any, 0, lst.Len())
		for i := 0; i < lst.Len(); i++ {
			out = append(out, goValue(fd, lst.Get(i)))
		}
		return out, nil
	}
	// An absent singular message means "not found".
	if fd.Kind() == protoreflect.MessageKind && !resp.Has(fd) {
		return nil, nil
	}
	return goValue(fd, resp.Get(fd)), nil
}

// goValue converts a protobuf field value to a plain Go value.
func goValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return v.Bool()
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return int32(v.Int())
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return v.Int()
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return uint32(v.Uint())
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return v.Uint()
	case protoreflect.FloatKind:
		return float32(v.Float())
	case protoreflect.DoubleKind:
		return v.Float()
	case protoreflect.StringKind:
		return v.String()
	case protoreflect.BytesKind:
		return v.Bytes()
	case protoreflect.EnumKind:
		if ev := fd.Enum().Values().ByNumber(v.Enum()); ev != nil {
			return string(ev.Name())
		}
		return int32(v.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return v.Message()
	}
	return nil
}
