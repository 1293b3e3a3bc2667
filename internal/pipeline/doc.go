// Package pipeline processes inbound chat messages for one user.
//
// Every message event runs through the same strict sequence: filter (no
// text body, broadcast channel, group chat), persist with direction, stop
// on self-echoes, check the auto-reply gate, assemble a bounded oldest-first
// history window, generate a reply through the AI gateway, then send and
// persist the reply.
//
// The pipeline never raises a hard failure for an AI error; after the
// gateway's retry budget is exhausted a fixed fallback reply is sent
// instead. A failed persist of the inbound message aborts auto-reply for
// that message.
package pipeline
