package server

import (
	"fmt"
	"net/http"
	"os"

	"chaingit/pkg/ledger"
	"chaingit/pkg/scratch"
	"chaingit/pkg/types"
)

// handleReceivePack 处理 push。唯一一个往回写的操作:
// git 退出后从 scratch 树里收割新对象和新引用，
// 对象先上传 Blob 网络换回定位符，再连同引用一起写进账本。
// 任何一步失败整个请求失败 —— scratch 树和未持久化的收割结果一起丢弃。
func (s *Server) handleReceivePack(w http.ResponseWriter, r *http.Request) {
	_, led, ok := s.lookupRepo(w, r)
	if !ok {
		return
	}

	repo, err := s.mat.Materialize(r.Context(), led, scratch.Options{FetchObjects: true})
	if err != nil {
		httpError(w, err)
		return
	}
	defer repo.Remove()

	// unpackLimit 必须顶到最大: 超过阈值 git 会把 pack 原样留在
	// objects/pack 而不是炸成松散对象，收割就什么都看不见。
	stdout, stderr, err := s.git.RunStream(r.Context(), repo.Path, r.Body,
		"-c", "receive.unpackLimit=2147483647",
		"receive-pack", "--stateless-rpc", ".")
	if err != nil {
		// push 失败没有"部分成功"可言: 不收割，不持久化
		httpError(w, fmt.Errorf("git receive-pack failed: %w: %s", err, stderr))
		return
	}

	if err := s.persistHarvest(r, led, repo); err != nil {
		httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-git-receive-pack-result")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(stdout)
}

// persistHarvest 把 push 产生的新状态写回账本:
//  1. 扫描松散对象，批量问账本哪些是新的 (checkObjects 一次往返)
//  2. 新对象逐个上传 Blob 网络，收集 (hash, locator) 对
//  3. addObjects 批量落账
//  4. 扫描引用，跳过和物化时一致的，其余 addRefs (适配器自带写后校验)
func (s *Server) persistHarvest(r *http.Request, led ledger.Ledger, repo *scratch.Repo) error {
	ctx := r.Context()

	found, err := scratch.ScanObjects(repo.Path)
	if err != nil {
		return fmt.Errorf("failed to scan objects: %w", err)
	}

	var newObjects []scratch.ObjectFile
	if len(found) > 0 {
		hashes := make([]types.Hash, len(found))
		for i, f := range found {
			hashes[i] = f.Hash
		}
		known, err := led.CheckObjects(ctx, hashes)
		if err != nil {
			return fmt.Errorf("failed to check objects: %w", err)
		}
		for i, f := range found {
			if !known[i] {
				newObjects = append(newObjects, f)
			}
		}
	}

	if len(newObjects) > 0 {
		hashes := make([]types.Hash, 0, len(newObjects))
		locators := make([][]byte, 0, len(newObjects))
		for _, obj := range newObjects {
			data, err := os.ReadFile(obj.Path)
			if err != nil {
				return fmt.Errorf("failed to read object %s: %w", obj.Hash, err)
			}
			locator, err := s.blobs.Upload(ctx, data)
			if err != nil {
				return fmt.Errorf("failed to upload object %s: %w", obj.Hash, err)
			}
			hashes = append(hashes, obj.Hash)
			locators = append(locators, []byte(locator))
		}
		if err := led.AddObjects(ctx, hashes, locators); err != nil {
			return fmt.Errorf("failed to store objects in ledger: %w", err)
		}
	}

	// 物化时写进 scratch 的引用，push 没动它们就不用重新落账
	before := make(map[string]types.Hash, len(repo.Refs))
	for _, ref := range repo.Refs {
		before[ref.Name] = ref.Target
	}

	loose := make(map[types.Hash]bool, len(found))
	for _, f := range found {
		loose[f.Hash] = true
	}

	scanned, err := scratch.ScanRefs(repo.Path)
	if err != nil {
		return fmt.Errorf("failed to scan refs: %w", err)
	}

	var names []string
	var data [][]byte
	for _, ref := range scanned {
		if target, ok := before[ref.Name]; ok && target == ref.Target {
			continue
		}
		// 动过的引用必须指向收割到的松散对象或账本里已有的对象。
		// 指向两边都没有的哈希说明对象跟丢了 (比如 pack 没被展开)，
		// 这时落下引用会把仓库永久弄坏: 之后的 fetch 全挂在这个 tip 上。
		if !loose[ref.Target] {
			exists, err := led.IsObjectExist(ctx, ref.Target)
			if err != nil {
				return fmt.Errorf("failed to check ref target %s: %w", ref.Target, err)
			}
			if !exists {
				return fmt.Errorf("ref %s points at %s which was not harvested and is not in the ledger",
					ref.Name, ref.Target)
			}
		}
		names = append(names, ref.Name)
		data = append(data, []byte(ref.Target))
	}

	if len(names) > 0 {
		if err := led.AddRefs(ctx, names, data); err != nil {
			return fmt.Errorf("failed to store refs in ledger: %w", err)
		}
	}
	return nil
}
