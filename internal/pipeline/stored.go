package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forPelevin/adscribe/internal/domain/narration"
	"github.com/forPelevin/adscribe/internal/domain/timecode"
	"github.com/forPelevin/adscribe/internal/ports"
	"github.com/forPelevin/adscribe/internal/types"
)

// StoredVideos returns the prefixes that hold a details blob, sorted.
func StoredVideos(ctx context.Context, store ports.BlobStore) ([]string, error) {
	keys, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		prefix, name, ok := strings.Cut(k, "/")
		if ok && name == DetailsBlob {
			out = append(out, prefix)
		}
	}
	return out, nil
}

// Stored is the narration record of one video as kept in the blob store.
type Stored struct {
	Details  types.Details
	Segments []types.NarrationSegment
}

// Resave reads a narration record that may have been edited by hand, puts its
// segments back in start order and writes it again.
func Resave(ctx context.Context, store ports.BlobStore, prefix string) (Stored, error) {
	var st Stored
	b, err := store.Get(ctx, prefix+"/"+DetailsBlob)
	if err != nil {
		return Stored{}, err
	}
	if err := json.Unmarshal(b, &st.Details); err != nil {
		return Stored{}, fmt.Errorf("decode %s: %w", DetailsBlob, err)
	}

	key := prefix + "/" + NarrationBlob(prefix)
	if b, err = store.Get(ctx, key); err != nil {
		return Stored{}, err
	}
	if err := json.Unmarshal(b, &st.Segments); err != nil {
		return Stored{}, fmt.Errorf("decode %s: %w", NarrationBlob(prefix), err)
	}
	for i, s := range st.Segments {
		start, err := timecode.ToDuration(s.StartTime)
		if err != nil {
			return Stored{}, fmt.Errorf("segment %d: %w", i, err)
		}
		end, err := timecode.ToDuration(s.EndTime)
		if err != nil {
			return Stored{}, fmt.Errorf("segment %d: %w", i, err)
		}
		if end < start {
			return Stored{}, fmt.Errorf("segment %d ends before it starts", i)
		}
	}
	if err := narration.SortSegments(st.Segments); err != nil {
		return Stored{}, err
	}

	out, err := json.MarshalIndent(st.Segments, "", "  ")
	if err != nil {
		return Stored{}, fmt.Errorf("marshal narration: %w", err)
	}
	if err := store.Put(ctx, key, out); err != nil {
		return Stored{}, fmt.Errorf("store %s: %w", NarrationBlob(prefix), err)
	}
	return st, nil
}
