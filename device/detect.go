package device

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Accelerator describes one visible GPU.
type Accelerator struct {
	ID      int    `json:"id"`
	Library string `json:"library"`
	Name    string `json:"name,omitempty"`
}

// Inventory is the set of accelerators visible to the process.
type Inventory struct {
	Accelerators []Accelerator `json:"accelerators"`
}

// Has reports whether accelerator id is present.
func (inv Inventory) Has(id int) bool {
	for _, a := range inv.Accelerators {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Detector reports the accelerators available to the process.
type Detector interface {
	Detect(ctx context.Context) (Inventory, error)
}

// StaticDetector returns a fixed inventory.
type StaticDetector Inventory

// Detect implements Detector.
func (s StaticDetector) Detect(context.Context) (Inventory, error) {
	return Inventory(s), nil
}

// NoGPU is a detector for hosts without accelerators.
var NoGPU = StaticDetector{}

// SystemDetector inspects visibility variables and the NVIDIA proc tree.
// The result is cached after the first call.
type SystemDetector struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// ProcDir defaults to /proc/driver/nvidia/gpus.
	ProcDir string

	once sync.Once
	inv  Inventory
	err  error
}

// NewSystemDetector creates a detector for the running host.
func NewSystemDetector() *SystemDetector {
	return &SystemDetector{}
}

// Detect implements Detector.
func (d *SystemDetector) Detect(context.Context) (Inventory, error) {
	d.once.Do(func() {
		d.inv, d.err = d.detect()
	})
	return d.inv, d.err
}

func (d *SystemDetector) detect() (Inventory, error) {
	lookup := d.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	procDir := d.ProcDir
	if procDir == "" {
		procDir = "/proc/driver/nvidia/gpus"
	}

	if ids, set := visibleIDs(lookup, "CUDA_VISIBLE_DEVICES"); set {
		return inventoryOf("CUDA", len(ids)), nil
	}
	if v, ok := lookup("NVIDIA_VISIBLE_DEVICES"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "void", "none":
			return Inventory{}, nil
		case "all":
		default:
			return inventoryOf("CUDA", len(splitIDs(v))), nil
		}
	}
	for _, key := range []string{"ROCR_VISIBLE_DEVICES", "HIP_VISIBLE_DEVICES"} {
		if ids, set := visibleIDs(lookup, key); set {
			return inventoryOf("ROCm", len(ids)), nil
		}
	}

	entries, err := os.ReadDir(procDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Inventory{}, nil
		}
		return Inventory{}, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	inv := Inventory{}
	for i, name := range names {
		inv.Accelerators = append(inv.Accelerators, Accelerator{
			ID:      i,
			Library: "CUDA",
			Name:    readModel(filepath.Join(procDir, name, "information")),
		})
	}
	return inv, nil
}

// visibleIDs reads a visibility list. "-1" and an empty value hide every
// device; the second result reports whether the variable was set at all.
func visibleIDs(lookup func(string) (string, bool), key string) ([]string, bool) {
	v, ok := lookup(key)
	if !ok {
		return nil, false
	}
	v = strings.TrimSpace(v)
	if v == "" || v == "-1" {
		return nil, true
	}
	return splitIDs(v), true
}

func splitIDs(v string) []string {
	var ids []string
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" && id != "-1" {
			ids = append(ids, id)
		}
	}
	return ids
}

func inventoryOf(library string, n int) Inventory {
	inv := Inventory{}
	for i := 0; i < n; i++ {
		inv.Accelerators = append(inv.Accelerators, Accelerator{ID: i, Library: library})
	}
	return inv
}

func readModel(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(k) == "Model" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
