// Package interpret turns classified bead states into digits and digits
// into the integer shown on the soroban.
//
// A digit is worth 5 when its upper bead rests against the beam plus 1 for
// each lower bead against the beam, capped at 9. Digits combine by their
// position, not their order: a lane at position p contributes value×10^p.
// The sum is computed with overflow checks; positions beyond 18 cannot be
// represented in an int64 and count as overflow.
package interpret
