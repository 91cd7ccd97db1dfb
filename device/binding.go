package device

import (
	"strconv"
	"strings"

	"github.com/kbukum/modelkit/errors"
)

// Type is a device class.
type Type string

const (
	CPU Type = "cpu"
	GPU Type = "gpu"
)

// Binding identifies a device. ID is meaningful only for GPU.
type Binding struct {
	Type Type `json:"type"`
	ID   int  `json:"id"`
}

// CPUBinding binds work to the host processor.
var CPUBinding = Binding{Type: CPU}

// GPUBinding returns the binding for accelerator id.
func GPUBinding(id int) Binding {
	return Binding{Type: GPU, ID: id}
}

// IsGPU reports whether b targets an accelerator.
func (b Binding) IsGPU() bool { return b.Type == GPU }

// String renders b in the form Parse accepts.
func (b Binding) String() string {
	if b.Type == GPU {
		return "gpu:" + strconv.Itoa(b.ID)
	}
	return string(CPU)
}

var typeAliases = map[string]Type{
	"cpu":  CPU,
	"gpu":  GPU,
	"cuda": GPU,
}

// Parse converts a device string into a Binding. A bare "gpu" selects
// accelerator 0; an id given with "cpu" is ignored.
func Parse(spec string) (Binding, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	if s == "" {
		return Binding{}, errors.InvalidDeviceSpec(spec, "empty device")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 2 {
		return Binding{}, errors.InvalidDeviceSpec(spec, "expected <type> or <type>:<id>")
	}
	typ, ok := typeAliases[parts[0]]
	if !ok {
		return Binding{}, errors.InvalidDeviceSpec(spec, "device type must be cpu or gpu")
	}

	id := 0
	if len(parts) == 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return Binding{}, errors.InvalidDeviceSpec(spec, "device id must be an integer")
		}
		if n < 0 {
			return Binding{}, errors.InvalidDeviceSpec(spec, "device id must not be negative")
		}
		id = n
	}
	if typ == CPU {
		return CPUBinding, nil
	}
	return Binding{Type: GPU, ID: id}, nil
}

// MustParse is Parse for constants; it panics on an invalid spec.
func MustParse(spec string) Binding {
	b, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return b
}
