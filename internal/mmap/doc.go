// Package mmap maps fragment files read-only into memory.
//
// On unix systems the mapping is created with mmap(2) and advised for
// sequential access, since fragments are decoded front to back. Elsewhere the
// file is read into memory; callers see the same API.
package mmap
