// Package textutil provides filename and label helpers shared by capture and
// delivery.
//
// File tokens fold diacritics and drop filesystem-unsafe characters while
// keeping non-Latin letters, so a lead named "Zoë" or "Алия" still produces a
// readable file name.
package textutil
