// Command vmcensus boots a simulated physical address space, drives it
// through a small synthetic workload, and prints a core-map census: a
// counter report and a pprof profile of frame state, for offline
// inspection with `go tool pprof`.
//
// The original chentry tool patched an ELF entry point in place; this
// tool keeps its flagless, positional-argument shape but points it at
// the VM core's diagnostics instead.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"vmkern/boot"
	"vmkern/coremap"
	"vmkern/ramio"
	"vmkern/vm"
	"vmkern/vmdiag"
)

func usage(me string) {
	fmt.Printf("%s <ram-end-bytes> <profile-out>\n\nBoot a simulated address space of the given size, run a short workload, and write a core-map profile.\n", me)
	os.Exit(1)
}

func main() {
	if len(os.Args) != 3 {
		usage(os.Args[0])
	}
	ramEnd, err := strconv.ParseUint(os.Args[1], 0, 64)
	if err != nil {
		log.Fatal(err)
	}
	out := os.Args[2]

	sim := ramio.NewSim(uintptr(ramEnd), 0, coremap.PageSize)
	seq := boot.NewSequencer(sim)
	cm, tlbm := seq.Boot(8)

	as := vm.As_create(cm, tlbm)
	vm.As_define_region(as, 0x1000, 4*coremap.PageSize, true, true, false)
	vm.As_complete_load(as)

	for i := 0; i < 4; i++ {
		va := uintptr(0x1000 + i*coremap.PageSize)
		if err := vm.Fault(as, vm.WriteMiss, va); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Println(vmdiag.Report(vmdiag.Default))

	samples := make([]vmdiag.FrameSample, cm.PageCount())
	for i := 0; i < cm.PageCount(); i++ {
		samples[i] = vmdiag.FrameSample{Index: i, State: cm.At(i).State.String()}
	}
	prof := vmdiag.Profile(samples)

	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := vmdiag.WriteProfile(prof, f); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote profile to %s\n", out)
}
