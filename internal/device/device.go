// Package device picks the compute device and numeric precision a model is
// loaded with.
package device

// Device identifies a compute backend.
type Device string

const (
	CUDA Device = "cuda"
	MPS  Device = "mps"
	CPU  Device = "cpu"
)

// Precision is the floating point width used for weights and activations.
type Precision string

const (
	Float16 Precision = "float16"
	Float32 Precision = "float32"
)

// Plan is the (device, precision) pair chosen for a run.
type Plan struct {
	Device    Device
	Precision Precision
}

func (p Plan) String() string { return string(p.Device) + "/" + string(p.Precision) }

// Half reports whether the plan uses reduced precision.
func (p Plan) Half() bool { return p.Precision == Float16 }

// Probe reports which accelerated backends are usable. CPU is always assumed.
type Probe interface {
	CUDAAvailable() bool
	MPSAvailable() bool
}

// Select returns the first available backend in priority order CUDA, MPS, CPU.
// Only CUDA runs in half precision: MPS produces invalid sampling
// probabilities under float16, so it always gets float32.
func Select(p Probe) Plan {
	switch {
	case p.CUDAAvailable():
		return Plan{Device: CUDA, Precision: Float16}
	case p.MPSAvailable():
		return Plan{Device: MPS, Precision: Float32}
	default:
		return CPUPlan()
	}
}

// CPUPlan is the fallback plan used when an accelerator cannot sample.
func CPUPlan() Plan { return Plan{Device: CPU, Precision: Float32} }

// Static is a Probe with fixed answers.
type Static struct {
	CUDA bool
	MPS  bool
}

func (s Static) CUDAAvailable() bool { return s.CUDA }
func (s Static) MPSAvailable() bool  { return s.MPS }
