package cooccur

// Partition 相似度矩陣上三角的一段連續欄範圍 [Start, End)
type Partition struct {
	Index int
	Start int
	End   int
}

// Len 欄數
func (p Partition) Len() int {
	return p.End - p.Start
}

// Partitions 將 n 個欄切成 min(workers, n) 段等寬的連續範圍，最後一段吸收餘數
func Partitions(n, workers int) []Partition {
	if n <= 0 {
		return nil
	}
	p := workers
	if p <= 0 {
		p = 1
	}
	if p > n {
		p = n
	}

	width := n / p
	parts := make([]Partition, p)
	for k := 0; k < p; k++ {
		parts[k] = Partition{Index: k, Start: k * width, End: (k + 1) * width}
	}
	parts[p-1].End = n
	return parts
}
