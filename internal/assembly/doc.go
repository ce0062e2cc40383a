// Package assembly compiles stack-VM assembly source into programs.
//
// A program is a tree of code blocks: spans of primitive operations joined
// by control blocks (Join, Split, Loop, Call). Every block carries a
// domain-separated BLAKE2b digest of its contents, so the root digest
// identifies the program. Debug information (assembly-op provenance and
// debug.stack decorators) is recorded only in debug mode and never
// contributes to a digest.
//
// # Source Format
//
//	use.std::math::felt        # import; referenced as felt::<proc>
//
//	proc.double                # local procedure
//	    dup add
//	end
//
//	export.scale.1             # exported procedure with one local word
//	    loc_store.0 loc_load.0 mul.3
//	end
//
//	begin
//	    push.5 exec.double     # exec inlines, call switches memory context
//	    if.true push.1 else push.0 end
//	end
//
// Kernels are compiled with Assembler.WithKernel; their exported procedures
// are reachable from programs through syscall.<name>.
package assembly
