// Package translation asks a chat model for the Japanese rendering of a
// Spanish text (hiragana, romanji, Spanish gloss and a pronunciation guide)
// and normalizes the model's raw reply into a Result.
//
// Linguistic correctness is entirely the model's responsibility; nothing
// here validates the content of the four fields.
package translation
