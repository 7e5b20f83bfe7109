package catalog

// SampleBooks seeds a development catalog with a few categories.
var SampleBooks = []SeedBook{
	{Category: "소설", Title: "채식주의자", Author: "한강", Description: "평범한 여자가 육식을 거부하며 일어나는 일을 세 개의 시선으로 그린 연작소설"},
	{Category: "소설", Title: "아몬드", Author: "손원평", Description: "감정을 느끼지 못하는 소년의 성장 이야기"},
	{Category: "소설", Title: "불편한 편의점", Author: "김호연", Description: "서울역 노숙인이 편의점 야간 알바를 하며 벌어지는 따뜻한 이야기"},
	{Category: "에세이", Title: "언어의 온도", Author: "이기주", Description: "말과 글에 담긴 온기를 다룬 산문집"},
	{Category: "에세이", Title: "죽고 싶지만 떡볶이는 먹고 싶어", Author: "백세희", Description: "경도 우울증 환자의 상담 기록"},
	{Category: "과학", Title: "코스모스", Author: "칼 세이건", Description: "우주와 인류의 기원을 다룬 교양 과학서"},
	{Category: "과학", Title: "이기적 유전자", Author: "리처드 도킨스", Description: "유전자의 관점에서 본 진화론"},
	{Category: "역사", Title: "사피엔스", Author: "유발 하라리", Description: "인류의 역사를 인지혁명, 농업혁명, 과학혁명으로 읽는 책"},
	{Category: "자기계발", Title: "아주 작은 습관의 힘", Author: "제임스 클리어", Description: "작은 습관이 쌓여 큰 변화를 만드는 방법"},
	{Category: "컴퓨터", Title: "클린 코드", Author: "로버트 C. 마틴", Description: "읽기 좋은 코드를 작성하는 원칙과 사례"},
}
