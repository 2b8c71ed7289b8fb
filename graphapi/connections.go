package graphapi

// PrimaryKind tracks which domain the primary handle currently lives in.
type PrimaryKind int

const (
	PrimaryLatent PrimaryKind = iota
	PrimaryImage
)

// Connections is the state threaded through one build pass: the current
// primary latent/image handle and its pixel size, the per-stage model and
// CLIP handles, the VAE, the prompt conditioning, and the seed in use.
// Optional slots (refiner model, refiner conditioning) stay nil until their
// stage runs; consumers check before dereferencing.
type Connections struct {
	Seed      int64
	BatchSize int

	Primary     *NodeRef
	PrimaryKind PrimaryKind
	PrimarySize Size

	BaseModel NodeRef
	BaseCLIP  NodeRef
	VAE       NodeRef

	RefinerModel *NodeRef
	RefinerCLIP  *NodeRef

	PositiveBase    NodeRef
	NegativeBase    NodeRef
	PositiveRefiner *NodeRef
	NegativeRefiner *NodeRef
}

// StageModel returns the refiner model when one was loaded, else the base
// model. Stages built after the refiner sample with it.
func (c *Connections) StageModel() NodeRef {
	if c.RefinerModel != nil {
		return *c.RefinerModel
	}
	return c.BaseModel
}

// StageConditioning returns the refiner conditioning when present, else the
// base conditioning.
func (c *Connections) StageConditioning() (positive, negative NodeRef) {
	if c.PositiveRefiner != nil && c.NegativeRefiner != nil {
		return *c.PositiveRefiner, *c.NegativeRefiner
	}
	return c.PositiveBase, c.NegativeBase
}
