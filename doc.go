// Package arc reads archives in many formats through one API.
//
// An archive is opened with [Open], which picks a format backend (zip,
// rar, 7z, tar with any common compression, or a single compressed
// file) and returns a [Reader]. The Reader exposes the same member
// listing, per-member streams, link resolution, and extraction
// operations regardless of format; format differences surface only
// through [Reader.HasRandomAccess] and the documented streaming rules.
//
// # Quick Start
//
// List and read members of a zip archive:
//
//	r, err := arc.Open("bundle.zip", arc.FormatZip)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	members, err := r.Members()
//	if err != nil {
//	    return err
//	}
//	f, err := r.OpenMember(members[0])
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	data, err := io.ReadAll(f)
//
// Iterate a streaming archive in a single pass:
//
//	it, err := r.Iterate()
//	if err != nil {
//	    return err
//	}
//	defer it.Close()
//	for it.Next() {
//	    m := it.Member()
//	    if f := it.File(); f != nil {
//	        // read f before calling Next again
//	    }
//	}
//	if err := it.Err(); err != nil {
//	    return err
//	}
//
// # Extraction
//
// Extract everything under a destination directory with path
// sanitization and an overwrite policy:
//
//	res, err := r.ExtractAll("/tmp/out",
//	    arc.ExtractWithFilter(arc.FilterData),
//	    arc.ExtractWithOverwrite(arc.OverwriteSkip),
//	)
//
// Extraction failures are collected per member in [ExtractResult]
// rather than aborting the whole pass.
//
// # Encrypted Archives
//
// Pass the password at open time:
//
//	r, err := arc.Open("secret.rar", arc.FormatRar, arc.WithPassword("hunter2"))
//
// For RAR5 archives with encrypted headers the password is verified
// against the header check value before decoding starts, so a wrong
// password fails fast with [ErrEncrypted].
package arc
