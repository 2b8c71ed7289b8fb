// Comfyforge builds Stable Diffusion node graphs from plain generation
// settings and runs them on a ComfyUI backend. The graphapi package turns
// configuration cards into the prompt wire format, client talks to the
// backend over its REST and websocket APIs, index catalogs the models on
// disk, and inference drives batched generation runs end to end.
package comfyforge
