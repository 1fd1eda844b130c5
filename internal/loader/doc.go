// Package loader reads the files kforge works from: YAML graph documents
// and property files.
//
// # Graph files
//
// A graph file is a YAML stream of ir.Document values. The first document
// is the kernel entry point; every following document is a callee.
//
// # Property files
//
// Property files hold the dotted keys read by package meta. Nested
// structure is flattened, so the CUE file
//
//	kforge: block: x: 128
//	s0: t0: device: "0:1"
//
// and the YAML file
//
//	kforge:
//	  block:
//	    x: 128
//	s0.t0.device: "0:1"
//
// both yield kforge.block.x=128 and s0.t0.device=0:1. Lists of numbers
// become comma-separated values ("64,1,1"). Java-style .properties files
// (key=value per line, # comments) are read verbatim.
package loader
