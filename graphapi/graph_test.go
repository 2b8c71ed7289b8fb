package graphapi

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAddDuplicateName(t *testing.T) {
	g := NewNodeGraph()
	if _, err := g.Add("Loader", &Node{ClassType: "CheckpointLoaderSimple"}); err != nil {
		t.Fatalf("Failed to add first node: %v", err)
	}
	_, err := g.Add("Loader", &Node{ClassType: "VAELoader"})
	if !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("Expected ErrDuplicateNode, got %v", err)
	}
	// The original node must survive the collision
	if g.GetNodeByName("Loader").ClassType != "CheckpointLoaderSimple" {
		t.Error("Expected original node to be untouched after duplicate add")
	}
}

func TestValidateDanglingRef(t *testing.T) {
	g := NewNodeGraph()
	_, err := g.Add("Decode", &Node{
		ClassType: "VAEDecode",
		Inputs: map[string]interface{}{
			"samples": NodeRef{Node: "Sampler", Slot: 0},
			"vae":     NodeRef{Node: "Loader", Slot: 2},
		},
	})
	if err != nil {
		t.Fatalf("Failed to add node: %v", err)
	}

	if err := g.Validate(); !errors.Is(err, ErrDanglingRef) {
		t.Errorf("Expected ErrDanglingRef, got %v", err)
	}
	if _, err := json.Marshal(g); err == nil {
		t.Error("Expected marshal to fail on a dangling reference")
	}

	// Adding the missing nodes repairs the graph
	if _, err := g.Add("Sampler", &Node{ClassType: "KSampler"}); err != nil {
		t.Fatalf("Failed to add node: %v", err)
	}
	if _, err := g.Add("Loader", &Node{ClassType: "CheckpointLoaderSimple"}); err != nil {
		t.Fatalf("Failed to add node: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Expected graph to validate, got %v", err)
	}
}

func TestValidateMissingOutput(t *testing.T) {
	g := NewNodeGraph()
	g.MarkOutput("SaveImage")
	if err := g.Validate(); !errors.Is(err, ErrDanglingRef) {
		t.Errorf("Expected ErrDanglingRef for missing output node, got %v", err)
	}
}

func TestMarkOutputOrder(t *testing.T) {
	g := NewNodeGraph()
	for _, name := range []string{"SaveImage", "SavePreview", "SaveImage"} {
		if _, err := g.Add(name, &Node{ClassType: "SaveImage"}); err != nil && !errors.Is(err, ErrDuplicateNode) {
			t.Fatalf("Failed to add node: %v", err)
		}
		g.MarkOutput(name)
	}
	outputs := g.Outputs()
	if len(outputs) != 2 {
		t.Fatalf("Expected 2 outputs, got %d", len(outputs))
	}
	if outputs[0] != "SaveImage" || outputs[1] != "SavePreview" {
		t.Errorf("Expected outputs in marking order, got %v", outputs)
	}
}

func TestWireFormatRoundtrip(t *testing.T) {
	g := NewNodeGraph()
	latent, err := AddEmptyLatent(g, "EmptyLatent", Size{Width: 512, Height: 512}, 1)
	if err != nil {
		t.Fatalf("Failed to add latent: %v", err)
	}
	model, clip, _, err := AddCheckpointLoader(g, "CheckpointLoader", "photon_v1.safetensors")
	if err != nil {
		t.Fatalf("Failed to add loader: %v", err)
	}
	positive, err := AddCLIPTextEncode(g, "PositiveCLIP", "a lighthouse at dusk", clip)
	if err != nil {
		t.Fatalf("Failed to add conditioning: %v", err)
	}
	negative, err := AddCLIPTextEncode(g, "NegativeCLIP", "blurry", clip)
	if err != nil {
		t.Fatalf("Failed to add conditioning: %v", err)
	}
	if _, err := AddKSampler(g, "Sampler", model, positive, negative, latent,
		42, 20, 7, "euler", "normal", 1); err != nil {
		t.Fatalf("Failed to add sampler: %v", err)
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Failed to marshal graph: %v", err)
	}

	// The CLIP input must serialize as the ["node name", slot] tuple
	var raw map[string]struct {
		ClassType string                 `json:"class_type"`
		Inputs    map[string]interface{} `json:"inputs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal wire format: %v", err)
	}
	sampler, ok := raw["Sampler"]
	if !ok {
		t.Fatal("Expected Sampler entry in wire format")
	}
	if sampler.ClassType != "KSampler" {
		t.Errorf("Expected class_type KSampler, got %s", sampler.ClassType)
	}
	tuple, ok := sampler.Inputs["latent_image"].([]interface{})
	if !ok || len(tuple) != 2 {
		t.Fatalf("Expected latent_image to be a 2 element tuple, got %v", sampler.Inputs["latent_image"])
	}
	if tuple[0] != "EmptyLatent" || tuple[1] != float64(0) {
		t.Errorf("Expected [EmptyLatent 0], got %v", tuple)
	}

	// Decoding back into a NodeGraph rebuilds typed references
	var decoded NodeGraph
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal graph: %v", err)
	}
	ref, ok := decoded.GetNodeByName("Sampler").Inputs["model"].(NodeRef)
	if !ok {
		t.Fatal("Expected model input to decode as a NodeRef")
	}
	if ref.Node != "CheckpointLoader" || ref.Slot != 0 {
		t.Errorf("Expected CheckpointLoader slot 0, got %+v", ref)
	}
}

func TestScaleByFloors(t *testing.T) {
	s := Size{Width: 511, Height: 301}.ScaleBy(1.5)
	if s.Width != 766 || s.Height != 451 {
		t.Errorf("Expected 766x451, got %dx%d", s.Width, s.Height)
	}
}
