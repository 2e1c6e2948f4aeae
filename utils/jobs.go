package utils

// JobPool bounds the number of goroutines running at the same time.
// Get blocks until a slot is free, Put returns it.
type JobPool struct {
	jobs chan struct{}
}

func (p *JobPool) Get() {
	<-p.jobs
}

func (p *JobPool) Put() {
	p.jobs <- struct{}{}
}

func (p *JobPool) Size() int {
	return cap(p.jobs)
}

func NewJobPool(size int) (j *JobPool) {
	size = Clamp(size, 1, MaxJobPoolSize)
	j = &JobPool{jobs: make(chan struct{}, size)}
	for range size {
		j.jobs <- struct{}{}
	}
	return j
}
